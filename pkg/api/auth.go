package api

import (
	"log"
	"net/http"

	"github.com/maxwin66/companion/pkg/domain"
)

type SessionResponse struct {
	Session  domain.Session  `json:"session"`
	Settings domain.Settings `json:"settings"`
	// StripQuery tells the page to drop the login parameters from its URL.
	StripQuery bool `json:"strip_query,omitempty"`
}

func (h *Handler) HandleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.backend.OAuthURL(), http.StatusFound)
}

// HandleCallback consumes the parameters of the OAuth redirect and sends the
// browser on to the app without them.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver(r).Resolve(r.Context(), r.URL.Query())
	if err != nil {
		log.Printf("Login callback rejected: %v", err)
	} else {
		h.convos.Drop(deviceID(r))
		log.Printf("Session resolved for %s (%d credits)", res.Session.Identity, res.Session.Credits)
	}
	http.Redirect(w, r, h.opts.AppURL, http.StatusSeeOther)
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	res, err := h.resolver(r).Resolve(r.Context(), r.URL.Query())
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{
		Session:    res.Session,
		Settings:   settings,
		StripQuery: res.Consumed,
	})
}

func (h *Handler) HandleGuestLogin(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	identity := domain.NewGuestIdentity()

	token, err := h.backend.GuestLogin(r.Context(), identity)
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	sess, err := h.resolver(r).Login(r.Context(), identity, token)
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	h.convos.Drop(deviceID(r))

	respondWithJSON(w, http.StatusOK, SessionResponse{Session: sess, Settings: settings})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	if err := h.resolver(r).Logout(r.Context()); err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	h.convos.Drop(deviceID(r))
	respondWithJSON(w, http.StatusOK, map[string]string{"redirect": h.opts.AppURL})
}
