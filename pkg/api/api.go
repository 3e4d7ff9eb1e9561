package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/i18n"
	"github.com/maxwin66/companion/pkg/repository/statestore"
	"github.com/maxwin66/companion/pkg/service/backend"
	"github.com/maxwin66/companion/pkg/service/conversation"
	"github.com/maxwin66/companion/pkg/service/numbers"
	"github.com/maxwin66/companion/pkg/service/session"
	"golang.org/x/text/language"
)

// Backend is the remote chat/image/credits API.
type Backend interface {
	OAuthURL() string
	SendMessage(ctx context.Context, identity domain.Identity, text, model string) (backend.ChatReply, error)
	GenerateImage(ctx context.Context, identity domain.Identity, prompt string, knownBalance int) (backend.ImageResult, error)
	FetchCredits(ctx context.Context, identity domain.Identity) (int, error)
	History(ctx context.Context, identity domain.Identity) ([]domain.ChatMessage, error)
	GuestLogin(ctx context.Context, email domain.Identity) (string, error)
}

// Numbers is the virtual number provider.
type Numbers interface {
	ListServices(ctx context.Context) ([]domain.Offering, error)
	Purchase(ctx context.Context, offering domain.Offering, balance int) (numbers.PurchaseResult, error)
	ListNumbers(ctx context.Context) ([]domain.Lease, error)
	ListSMS(ctx context.Context, leaseID string) ([]domain.SMS, error)
}

type Options struct {
	// AppURL is the entry page users land on after login and logout.
	AppURL       string
	TokenSecret  []byte
	CookieSecure bool
}

type Handler struct {
	backend Backend
	numbers Numbers
	store   statestore.Store
	convos  *conversation.Registry
	opts    Options

	purchaseLocks *deviceLocks
}

// NewHandler wires the gateway routes. numbers may be nil when no provider
// is configured.
func NewHandler(b Backend, n Numbers, store statestore.Store, opts Options) *Handler {
	if opts.AppURL == "" {
		opts.AppURL = "/"
	}
	return &Handler{
		backend: b,
		numbers: n,
		store:   store,
		convos:  conversation.NewRegistry(),
		opts:    opts,

		purchaseLocks: newDeviceLocks(),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.deviceMiddleware)

	r.Get("/healthz", h.HandleHealth)

	// OAuth entry and return
	r.Get("/auth/google", h.HandleGoogleAuth)
	r.Get("/auth/callback", h.HandleCallback)

	r.Route("/api", func(r chi.Router) {
		r.Post("/guest-login", h.HandleGuestLogin)
		r.Post("/logout", h.HandleLogout)
		r.Get("/session", h.HandleSession)

		r.Post("/chat", h.HandleChat)
		r.Post("/generate-image", h.HandleGenerateImage)
		r.Get("/credits", h.HandleCredits)
		r.Get("/history", h.HandleHistory)

		r.Get("/settings", h.HandleGetSettings)
		r.Put("/settings", h.HandlePutSettings)

		r.Get("/virtual-sim", h.HandleVirtualSIM)
		r.Post("/virtual-sim", h.HandleVirtualSIM)
	})

	return r
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) resolver(r *http.Request) *session.Resolver {
	return session.NewResolver(statestore.ForDevice(h.store, deviceID(r)), h.opts.TokenSecret)
}

// requireSession resolves the stored session of the device, writing the
// error response itself when there is none.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, settings domain.Settings) (*session.Resolver, domain.Session, bool) {
	resolver := h.resolver(r)
	res, err := resolver.Resolve(r.Context(), nil)
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return nil, domain.Session{}, false
	}
	return resolver, res.Session, true
}

type ErrorResponse struct {
	Error    string      `json:"error"`
	Code     domain.Kind `json:"code,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// Helper functions for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{
		Error: message,
	})
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindValidationFailure:
		return http.StatusBadRequest
	case domain.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// respondWithDomainError converts err into the localized in-page message.
func (h *Handler) respondWithDomainError(w http.ResponseWriter, settings domain.Settings, err error) {
	kind := domain.KindOf(err)
	resp := ErrorResponse{
		Error: i18n.ErrorMessage(languageOf(settings), err),
		Code:  kind,
	}
	if kind == domain.KindAuthRequired {
		resp.Redirect = h.opts.AppURL
	}
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		log.Printf("Request failed (%s): %v", kind, err)
	}
	respondWithJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		return domain.WrapError(domain.KindValidationFailure, "invalid request body", err)
	}
	return nil
}

func languageOf(settings domain.Settings) language.Tag {
	if tag, ok := i18n.ParseTag(settings.Language); ok {
		return tag
	}
	return i18n.Default()
}
