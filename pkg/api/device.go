package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DeviceCookieName identifies the browser whose state the gateway keeps.
const DeviceCookieName = "companion_device"

type deviceKey struct{}

func (h *Handler) deviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := ""
		if cookie, err := r.Cookie(DeviceCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				device = cookie.Value
			}
		}
		if device == "" {
			device = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     DeviceCookieName,
				Value:    device,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				Secure:   h.opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceKey{}, device)))
	})
}

func deviceID(r *http.Request) string {
	device, _ := r.Context().Value(deviceKey{}).(string)
	return device
}
