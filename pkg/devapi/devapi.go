// Package devapi serves a local implementation of the chat backend the
// gateway talks to: paid chat and image calls, balances, history, guest
// tokens and a development login redirect.
package devapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maxwin66/companion/internal/sessiontoken"
	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/repository/userprovider"
	"github.com/maxwin66/companion/pkg/service/backend"
	"github.com/maxwin66/companion/pkg/service/chat"
)

// DevLoginEmail is used by the login stub when no email is given.
const DevLoginEmail = "dev@example.com"

type Options struct {
	GatewayURL  string
	TokenSecret []byte
	TokenTTL    time.Duration
	ChatCost    int
	ImageCost   int
}

type Handler struct {
	chatService  chat.Service
	userProvider *userprovider.UserProvider
	opts         Options
}

func NewHandler(chatService chat.Service, userProvider *userprovider.UserProvider, opts Options) *Handler {
	return &Handler{
		chatService:  chatService,
		userProvider: userProvider,
		opts:         opts,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/auth/google", h.HandleDevLogin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/generate-image", h.HandleGenerateImage)
		r.Get("/credits", h.HandleCredits)
		r.Get("/history", h.HandleHistory)
		r.Post("/guest-login", h.HandleGuestLogin)
	})

	return r
}

type ChatResponse struct {
	Reply   string `json:"reply"`
	Credits int    `json:"credits"`
}

type ImageResponse struct {
	Image   string `json:"image"`
	Credits int    `json:"credits"`
}

type CreditsResponse struct {
	Credits int `json:"credits"`
}

type HistoryResponse struct {
	History []domain.HistoryTurn `json:"history"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// HandleDevLogin stands in for the Google consent screen: it logs in the
// email from the query (or DevLoginEmail) and redirects to the gateway.
func (h *Handler) HandleDevLogin(w http.ResponseWriter, r *http.Request) {
	email := domain.Identity(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		email = DevLoginEmail
	}
	account, err := h.userProvider.GetOrCreate(email)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := sessiontoken.Issue(h.opts.TokenSecret, string(account.Email), h.opts.TokenTTL)
	if err != nil {
		log.Printf("Issuing token: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	q := url.Values{
		"email":   {string(account.Email)},
		"token":   {token},
		"credits": {strconv.Itoa(account.Credits)},
	}
	http.Redirect(w, r, strings.TrimRight(h.opts.GatewayURL, "/")+"/auth/callback?"+q.Encode(), http.StatusFound)
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req backend.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}

	account, err := h.userProvider.GetOrCreate(req.UserEmail)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.userProvider.Spend(account.Email, h.opts.ChatCost); err != nil {
		h.respondWithSpendError(w, err)
		return
	}

	reply, err := h.chatService.Reply(r.Context(), account.History, req.Message, req.ModelSelect)
	if err != nil {
		log.Printf("Chat for %s failed: %v", account.Email, err)
		h.userProvider.Refund(account.Email, h.opts.ChatCost)
		respondWithError(w, http.StatusBadGateway, "Failed to generate a reply")
		return
	}

	if err := h.userProvider.AppendHistory(account.Email, domain.HistoryTurn{Question: req.Message, Answer: reply}); err != nil {
		log.Printf("Saving history for %s: %v", account.Email, err)
	}
	current, err := h.userProvider.GetAccount(account.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, ChatResponse{Reply: reply, Credits: current.Credits})
}

func (h *Handler) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req backend.ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondWithError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	account, err := h.userProvider.GetOrCreate(req.UserEmail)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	credits, err := h.userProvider.Spend(account.Email, h.opts.ImageCost)
	if err != nil {
		h.respondWithSpendError(w, err)
		return
	}

	image, err := h.chatService.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		log.Printf("Image for %s failed: %v", account.Email, err)
		h.userProvider.Refund(account.Email, h.opts.ImageCost)
		respondWithError(w, http.StatusBadGateway, "Failed to generate an image")
		return
	}

	respondWithJSON(w, http.StatusOK, ImageResponse{Image: image, Credits: credits})
}

func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	account, err := h.userProvider.GetOrCreate(domain.Identity(r.URL.Query().Get("user_email")))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, CreditsResponse{Credits: account.Credits})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	account, err := h.userProvider.GetOrCreate(domain.Identity(r.URL.Query().Get("user_email")))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	history := account.History
	if history == nil {
		history = []domain.HistoryTurn{}
	}
	respondWithJSON(w, http.StatusOK, HistoryResponse{History: history})
}

func (h *Handler) HandleGuestLogin(w http.ResponseWriter, r *http.Request) {
	var req backend.GuestLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !domain.IsGuest(req.Email) {
		respondWithError(w, http.StatusBadRequest, "guest login needs a guest address")
		return
	}

	account, err := h.userProvider.GetOrCreate(req.Email)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := sessiontoken.Issue(h.opts.TokenSecret, string(account.Email), h.opts.TokenTTL)
	if err != nil {
		log.Printf("Issuing guest token: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (h *Handler) respondWithSpendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userprovider.ErrInsufficientCredits):
		respondWithError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, userprovider.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
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
	respondWithJSON(w, code, map[string]string{"error": message})
}
