package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/i18n"
)

const (
	ThemeCookieName    = "companion_theme"
	DarkModeCookieName = "companion_dark"
)

// settingsFromRequest builds the settings for one request from its cookies
// and language negotiation. A lang query parameter is persisted.
func settingsFromRequest(w http.ResponseWriter, r *http.Request) domain.Settings {
	settings := domain.DefaultSettings()

	tag, persist := i18n.ResolveTag(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	settings = settings.WithLanguage(tag.String())

	if cookie, err := r.Cookie(ThemeCookieName); err == nil {
		if theme, ok := domain.ParseTheme(cookie.Value); ok {
			settings = settings.WithTheme(theme)
		}
	}
	if cookie, err := r.Cookie(DarkModeCookieName); err == nil {
		if dark, err := strconv.ParseBool(cookie.Value); err == nil {
			settings = settings.WithDarkMode(dark)
		}
	}
	return settings
}

// SettingsUpdate carries the fields a client wants changed.
type SettingsUpdate struct {
	Theme    *string `json:"theme"`
	Language *string `json:"language"`
	DarkMode *bool   `json:"dark_mode"`
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, settingsFromRequest(w, r))
}

func (h *Handler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)

	var req SettingsUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}

	next := settings
	if req.Theme != nil {
		theme, ok := domain.ParseTheme(*req.Theme)
		if !ok {
			h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "unknown theme "+strconv.Quote(*req.Theme)))
			return
		}
		next = next.WithTheme(theme)
	}
	if req.Language != nil {
		tag, ok := i18n.ParseTag(*req.Language)
		if !ok {
			h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "unsupported language "+strconv.Quote(*req.Language)))
			return
		}
		next = next.WithLanguage(tag.String())
		i18n.SetLanguageCookie(w, tag)
	}
	if req.DarkMode != nil {
		next = next.WithDarkMode(*req.DarkMode)
	}

	h.setCookie(w, ThemeCookieName, string(next.Theme))
	h.setCookie(w, DarkModeCookieName, strconv.FormatBool(next.DarkMode))
	respondWithJSON(w, http.StatusOK, next)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
