package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil, 5*time.Second), &hits
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestSendMessageAuthenticatedPassThrough(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.UserEmail != "alice@example.com" || req.Message != "hello" || req.ModelSelect != "fast" {
			t.Errorf("request = %+v", req)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"reply": "hi", "credits": 70})
	})

	reply, err := c.SendMessage(context.Background(), "alice@example.com", "hello", "fast")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Reply != "hi" || reply.Credits != 70 || !reply.CreditsKnown {
		t.Fatalf("reply = %+v, want hi/70", reply)
	}
}

func TestSendMessageGuestClamped(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"reply": "hi", "credits": 70})
	})

	reply, err := c.SendMessage(context.Background(), "guest-1@guest.local", "hello", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Credits != domain.GuestCeiling {
		t.Fatalf("credits = %d, want %d", reply.Credits, domain.GuestCeiling)
	}
}

func TestPaymentRequiredIsInsufficientCredits(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"error":"no credits"}`, `not json`, ``} {
		body := body
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(body))
		})

		_, err := c.SendMessage(context.Background(), "alice@example.com", "hello", "")
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("chat body %q err = %v, want insufficient credits", body, err)
		}
		_, err = c.GenerateImage(context.Background(), "alice@example.com", "a cat", 50)
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("image body %q err = %v, want insufficient credits", body, err)
		}
	}
}

func TestErrorBodyIsFailure(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "model overloaded"})
	})

	_, err := c.SendMessage(context.Background(), "alice@example.com", "hello", "")
	if !errors.Is(err, domain.ErrFailure) {
		t.Fatalf("err = %v, want failure", err)
	}
	if err.Error() != "model overloaded" {
		t.Fatalf("reason = %q, want model overloaded", err.Error())
	}
}

func TestNonJSONIsNetworkFailure(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	if _, err := c.SendMessage(context.Background(), "alice@example.com", "hello", ""); !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("err = %v, want network failure", err)
	}

	c2, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok but not json"))
	})
	if _, err := c2.FetchCredits(context.Background(), "alice@example.com"); !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("err = %v, want network failure", err)
	}
}

func TestUnreachableIsNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, time.Second)
	if _, err := c.SendMessage(context.Background(), "alice@example.com", "hello", ""); !errors.Is(err, domain.ErrNetworkFailure) {
		t.Fatalf("err = %v, want network failure", err)
	}
}

func TestGenerateImageRefusesLocally(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"image": "aGk=", "credits": 0})
	})

	_, err := c.GenerateImage(context.Background(), "guest-1@guest.local", "a cat", 5)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want insufficient credits", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("hits = %d, want 0", atomic.LoadInt32(hits))
	}
}

func TestGenerateImage(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ImageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt != "a cat" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"image": "aGk=", "credits": 15})
	})

	res, err := c.GenerateImage(context.Background(), "alice@example.com", "a cat", 25)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if res.ImageBase64 != "aGk=" || res.Credits != 15 {
		t.Fatalf("result = %+v", res)
	}
}

func TestFetchCreditsAndHistory(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_email") != "guest-1@guest.local" {
			t.Errorf("user_email = %q", r.URL.Query().Get("user_email"))
		}
		switch r.URL.Path {
		case "/api/credits":
			writeJSON(w, http.StatusOK, map[string]int{"credits": 300})
		case "/api/history":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"history": []map[string]string{{"question": "q1", "answer": "a1"}},
			})
		default:
			http.NotFound(w, r)
		}
	})

	credits, err := c.FetchCredits(context.Background(), "guest-1@guest.local")
	if err != nil {
		t.Fatalf("FetchCredits: %v", err)
	}
	if credits != domain.GuestCeiling {
		t.Fatalf("credits = %d, want %d", credits, domain.GuestCeiling)
	}

	msgs, err := c.History(context.Background(), "guest-1@guest.local")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Text != "a1" {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestGuestLogin(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok"})
	})

	if _, err := c.GuestLogin(context.Background(), "alice@example.com"); !errors.Is(err, domain.ErrValidationFailure) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatal("validation failure should not reach the backend")
	}
	tok, err := c.GuestLogin(context.Background(), "guest-1@guest.local")
	if err != nil || tok != "tok" {
		t.Fatalf("GuestLogin = %q %v, want tok", tok, err)
	}
}

func TestOAuthURL(t *testing.T) {
	t.Parallel()

	c := NewClient("https://backend.example.com/", nil, time.Second)
	if got := c.OAuthURL(); got != "https://backend.example.com/auth/google" {
		t.Fatalf("OAuthURL = %q", got)
	}
}
