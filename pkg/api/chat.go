package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/service/backend"
)

type ChatRequest struct {
	Message     string `json:"message"`
	ModelSelect string `json:"model_select"`
}

type ChatResponse struct {
	Reply   domain.ChatMessage `json:"reply"`
	Credits int                `json:"credits"`
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

type ImageResponse struct {
	Image   string `json:"image"`
	Credits int    `json:"credits"`
}

type CreditsResponse struct {
	Credits int  `json:"credits"`
	Guest   bool `json:"guest"`
}

type HistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		h.respondWithDomainError(w, settings, domain.NewError(domain.KindValidationFailure, "message is required"))
		return
	}

	resolver, sess, ok := h.requireSession(w, r, settings)
	if !ok {
		return
	}

	credits := sess.Credits
	// A sent message runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	reply, err := h.convos.Get(deviceID(r)).Send(ctx, req.Message, func(ctx context.Context) (string, error) {
		res, err := h.backend.SendMessage(ctx, sess.Identity, req.Message, req.ModelSelect)
		if err != nil {
			return "", err
		}
		if res.CreditsKnown {
			credits = resolver.Update(ctx, sess.Identity, res.Credits)
		}
		return res.Reply, nil
	})
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ChatResponse{Reply: reply, Credits: credits})
}

func (h *Handler) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)

	var req ImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}

	resolver, sess, ok := h.requireSession(w, r, settings)
	if !ok {
		return
	}

	var result backend.ImageResult
	credits := sess.Credits
	ctx := context.WithoutCancel(r.Context())
	err := h.convos.Get(deviceID(r)).Run(ctx, func(ctx context.Context) error {
		res, err := h.backend.GenerateImage(ctx, sess.Identity, req.Prompt, sess.Credits)
		if err != nil {
			return err
		}
		result = res
		if res.CreditsKnown {
			credits = resolver.Update(ctx, sess.Identity, res.Credits)
		}
		return nil
	})
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ImageResponse{Image: result.ImageBase64, Credits: credits})
}

// HandleCredits reconciles the local balance with the backend. A failed
// fetch still answers with the local balance.
func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	resolver, sess, ok := h.requireSession(w, r, settings)
	if !ok {
		return
	}
	sess = resolver.Reconcile(r.Context(), sess, h.backend)
	respondWithJSON(w, http.StatusOK, CreditsResponse{Credits: sess.Credits, Guest: sess.Guest})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	settings := settingsFromRequest(w, r)
	_, sess, ok := h.requireSession(w, r, settings)
	if !ok {
		return
	}
	messages, err := h.backend.History(r.Context(), sess.Identity)
	if err != nil {
		h.respondWithDomainError(w, settings, err)
		return
	}
	convo := h.convos.Get(deviceID(r))
	convo.Rehydrate(messages)
	respondWithJSON(w, http.StatusOK, HistoryResponse{Messages: convo.Messages()})
}
