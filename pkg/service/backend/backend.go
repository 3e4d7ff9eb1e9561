// Package backend is the HTTP client for the remote chat, image and credits API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
)

const maxResponseBytes = 32 << 20

type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a client for the backend at baseURL. A nil httpClient
// gets a client with timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

type ChatRequest struct {
	UserEmail   domain.Identity `json:"user_email"`
	Message     string          `json:"message"`
	ModelSelect string          `json:"model_select,omitempty"`
}

type ImageRequest struct {
	UserEmail domain.Identity `json:"user_email"`
	Prompt    string          `json:"prompt"`
}

type GuestLoginRequest struct {
	Email domain.Identity `json:"email"`
}

type chatResponse struct {
	Reply   string `json:"reply"`
	Credits *int   `json:"credits"`
}

type imageResponse struct {
	Image   string `json:"image"`
	Credits *int   `json:"credits"`
}

type creditsResponse struct {
	Credits *int `json:"credits"`
}

type historyResponse struct {
	History []domain.HistoryTurn `json:"history"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ChatReply is a successful chat turn. Credits is clamped; CreditsKnown is
// false when the backend did not report a balance.
type ChatReply struct {
	Reply        string
	Credits      int
	CreditsKnown bool
}

type ImageResult struct {
	ImageBase64  string
	Credits      int
	CreditsKnown bool
}

// OAuthURL is the backend entry point for Google login.
func (c *Client) OAuthURL() string {
	return c.baseURL + "/auth/google"
}

// SendMessage posts one chat message for identity.
func (c *Client) SendMessage(ctx context.Context, identity domain.Identity, text, model string) (ChatReply, error) {
	if strings.TrimSpace(text) == "" {
		return ChatReply{}, domain.NewError(domain.KindValidationFailure, "message is required")
	}
	var resp chatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", nil, ChatRequest{
		UserEmail:   identity,
		Message:     text,
		ModelSelect: model,
	}, &resp)
	if err != nil {
		return ChatReply{}, err
	}
	reply := ChatReply{Reply: resp.Reply}
	if resp.Credits != nil {
		reply.Credits = domain.Clamp(identity, *resp.Credits)
		reply.CreditsKnown = true
	}
	return reply, nil
}

// GenerateImage requests an image for prompt. It refuses without a request
// when knownBalance is below the minimum image price.
func (c *Client) GenerateImage(ctx context.Context, identity domain.Identity, prompt string, knownBalance int) (ImageResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return ImageResult{}, domain.NewError(domain.KindValidationFailure, "prompt is required")
	}
	if knownBalance < domain.ImageMinimumPrice {
		return ImageResult{}, domain.NewError(domain.KindInsufficientCredits,
			fmt.Sprintf("image generation needs %d credits, have %d", domain.ImageMinimumPrice, knownBalance))
	}
	var resp imageResponse
	err := c.do(ctx, http.MethodPost, "/api/generate-image", nil, ImageRequest{
		UserEmail: identity,
		Prompt:    prompt,
	}, &resp)
	if err != nil {
		return ImageResult{}, err
	}
	if resp.Image == "" {
		return ImageResult{}, domain.NewError(domain.KindFailure, "backend returned no image")
	}
	result := ImageResult{ImageBase64: resp.Image}
	if resp.Credits != nil {
		result.Credits = domain.Clamp(identity, *resp.Credits)
		result.CreditsKnown = true
	}
	return result, nil
}

// FetchCredits returns the backend's balance for identity, clamped.
func (c *Client) FetchCredits(ctx context.Context, identity domain.Identity) (int, error) {
	var resp creditsResponse
	query := url.Values{"user_email": {string(identity)}}
	if err := c.do(ctx, http.MethodGet, "/api/credits", query, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Credits == nil {
		return 0, domain.NewError(domain.KindFailure, "backend returned no credits")
	}
	return domain.Clamp(identity, *resp.Credits), nil
}

// History returns prior turns for identity as alternating messages.
func (c *Client) History(ctx context.Context, identity domain.Identity) ([]domain.ChatMessage, error) {
	var resp historyResponse
	query := url.Values{"user_email": {string(identity)}}
	if err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &resp); err != nil {
		return nil, err
	}
	return domain.FlattenHistory(resp.History, time.Now()), nil
}

// GuestLogin registers a generated guest address and returns its token.
func (c *Client) GuestLogin(ctx context.Context, email domain.Identity) (string, error) {
	if !domain.IsGuest(email) {
		return "", domain.NewError(domain.KindValidationFailure, "guest login needs a guest address")
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/guest-login", nil, GuestLoginRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", domain.NewError(domain.KindFailure, "backend returned no token")
	}
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return domain.WrapError(domain.KindValidationFailure, "encode request", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return domain.WrapError(domain.KindFailure, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WrapError(domain.KindNetworkFailure, "backend unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.WrapError(domain.KindNetworkFailure, "read backend response", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		reason := "insufficient credits"
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			reason = e.Error
		}
		return domain.NewError(domain.KindInsufficientCredits, reason)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if err := json.Unmarshal(raw, &e); err != nil {
			return domain.WrapError(domain.KindNetworkFailure,
				fmt.Sprintf("backend returned HTTP %d", resp.StatusCode), err)
		}
		if e.Error != "" {
			return domain.NewError(domain.KindFailure, e.Error)
		}
		return domain.NewError(domain.KindFailure, fmt.Sprintf("backend returned HTTP %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.KindNetworkFailure, "malformed backend response", err)
	}
	return nil
}
