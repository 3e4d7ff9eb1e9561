// Package i18n holds the user-facing message catalog, language resolution
// and price formatting.
package i18n

import (
	"net/http"
	"strings"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "companion_lang"
)

var supportedTags = []language.Tag{
	language.Indonesian,
	language.English,
}

var tagMatcher = language.NewMatcher(supportedTags)

// Message keys.
const (
	MsgInsufficientCredits = "error.insufficient_credits"
	MsgAuthRequired        = "error.auth_required"
	MsgNetworkFailure      = "error.network_failure"
	MsgProviderFailure     = "error.provider_failure"
	MsgValidationFailure   = "error.validation_failure"
	MsgBusy                = "error.busy"
	MsgFailure             = "error.failure"
)

func init() {
	entries := map[language.Tag]map[string]string{
		language.Indonesian: {
			MsgInsufficientCredits: "Kredit kamu tidak cukup. Upgrade paket untuk melanjutkan.",
			MsgAuthRequired:        "Silakan login terlebih dahulu.",
			MsgNetworkFailure:      "Koneksi bermasalah. Silakan coba lagi.",
			MsgProviderFailure:     "Layanan nomor virtual sedang bermasalah: %s",
			MsgValidationFailure:   "Permintaan tidak valid: %s",
			MsgBusy:                "Tunggu balasan sebelumnya selesai.",
			MsgFailure:             "Terjadi kesalahan: %s",
		},
		language.English: {
			MsgInsufficientCredits: "You don't have enough credits. Upgrade your plan to continue.",
			MsgAuthRequired:        "Please log in first.",
			MsgNetworkFailure:      "Connection problem. Please try again.",
			MsgProviderFailure:     "The virtual number service is having trouble: %s",
			MsgValidationFailure:   "Invalid request: %s",
			MsgBusy:                "Please wait for the previous reply to finish.",
			MsgFailure:             "Something went wrong: %s",
		},
	}
	for tag, messages := range entries {
		for key, msg := range messages {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
}

// Supported returns the list of supported language tags.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// Default returns the default language tag.
func Default() language.Tag {
	return language.Indonesian
}

// Printer returns a message printer for the supplied tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// ParseTag matches value against the supported languages.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	parsed, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, idx, confidence := tagMatcher.Match(parsed)
	if confidence == language.No {
		return language.Und, false
	}
	return supportedTags[idx], true
}

// ResolveTag determines the best language tag for the request.
// The bool indicates whether the lang query param should be persisted as a cookie.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}

	if langValue := r.URL.Query().Get(LangParam); langValue != "" {
		if tag, ok := ParseTag(langValue); ok {
			return tag, true
		}
	}

	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := ParseTag(cookie.Value); ok {
			return tag, false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, confidence := tagMatcher.Match(tags...)
			if confidence != language.No {
				return supportedTags[idx], false
			}
		}
	}

	return Default(), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// ErrorMessage renders the localized in-page message for err.
func ErrorMessage(tag language.Tag, err error) string {
	p := Printer(tag)
	switch domain.KindOf(err) {
	case domain.KindInsufficientCredits:
		return p.Sprintf(MsgInsufficientCredits)
	case domain.KindAuthRequired:
		return p.Sprintf(MsgAuthRequired)
	case domain.KindNetworkFailure:
		return p.Sprintf(MsgNetworkFailure)
	case domain.KindProviderFailure:
		return p.Sprintf(MsgProviderFailure, err.Error())
	case domain.KindValidationFailure:
		return p.Sprintf(MsgValidationFailure, err.Error())
	case domain.KindBusy:
		return p.Sprintf(MsgBusy)
	default:
		return p.Sprintf(MsgFailure, err.Error())
	}
}
