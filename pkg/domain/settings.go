package domain

type Theme string

const (
	ThemeDefault Theme = "default"
	ThemeSakura  Theme = "sakura"
	ThemeOcean   Theme = "ocean"
	ThemeNeon    Theme = "neon"
)

var themes = map[Theme]bool{
	ThemeDefault: true,
	ThemeSakura:  true,
	ThemeOcean:   true,
	ThemeNeon:    true,
}

func ParseTheme(value string) (Theme, bool) {
	t := Theme(value)
	return t, themes[t]
}

// Settings is the UI configuration in effect for one request. Values are
// copied, never mutated in place.
type Settings struct {
	Theme    Theme  `json:"theme"`
	Language string `json:"language"`
	DarkMode bool   `json:"dark_mode"`
}

func DefaultSettings() Settings {
	return Settings{Theme: ThemeDefault, Language: "id", DarkMode: false}
}

func (s Settings) WithTheme(theme Theme) Settings {
	s.Theme = theme
	return s
}

func (s Settings) WithLanguage(language string) Settings {
	s.Language = language
	return s
}

func (s Settings) WithDarkMode(dark bool) Settings {
	s.DarkMode = dark
	return s
}
