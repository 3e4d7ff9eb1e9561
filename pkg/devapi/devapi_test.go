package devapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maxwin66/companion/internal/sessiontoken"
	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/repository/userprovider"
	"github.com/maxwin66/companion/pkg/service/backend"
)

var testSecret = []byte("dev-secret")

type fakeChat struct {
	mu       sync.Mutex
	replyErr error
	imageErr error
	history  []domain.HistoryTurn
}

func (f *fakeChat) Reply(_ context.Context, history []domain.HistoryTurn, message, model string) (string, error) {
	f.mu.Lock()
	f.history = history
	f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return "echo: " + message, nil
}

func (f *fakeChat) GenerateImage(_ context.Context, prompt string) (string, error) {
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return "aW1n", nil
}

func newServer(t *testing.T, fc *fakeChat) (*httptest.Server, *backend.Client) {
	t.Helper()
	h := NewHandler(fc, userprovider.NewUserProvider(), Options{
		GatewayURL:  "http://gateway.test/",
		TokenSecret: testSecret,
		TokenTTL:    time.Hour,
		ChatCost:    1,
		ImageCost:   10,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, backend.NewClient(srv.URL, nil, 5*time.Second)
}

func TestChatSpendsAndRecordsHistory(t *testing.T) {
	t.Parallel()

	fc := &fakeChat{}
	_, client := newServer(t, fc)
	ctx := context.Background()

	reply, err := client.SendMessage(ctx, "user@example.com", "halo", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Reply != "echo: halo" || !reply.CreditsKnown || reply.Credits != domain.AccountDefaultBalance-1 {
		t.Fatalf("reply = %+v", reply)
	}

	if _, err := client.SendMessage(ctx, "user@example.com", "lagi", ""); err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}
	fc.mu.Lock()
	seen := fc.history
	fc.mu.Unlock()
	if len(seen) != 1 || seen[0].Question != "halo" {
		t.Fatalf("history passed to chat = %+v", seen)
	}

	msgs, err := client.History(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 4 || msgs[3].Text != "echo: lagi" {
		t.Fatalf("history = %+v", msgs)
	}

	credits, err := client.FetchCredits(ctx, "user@example.com")
	if err != nil || credits != domain.AccountDefaultBalance-2 {
		t.Fatalf("FetchCredits = %d, %v", credits, err)
	}
}

func TestImageInsufficientCredits(t *testing.T) {
	t.Parallel()

	_, client := newServer(t, &fakeChat{})
	ctx := context.Background()
	guest := domain.Identity("guest-1@guest.local")

	for i, want := range []int{15, 5} {
		res, err := client.GenerateImage(ctx, guest, "kucing", 100)
		if err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
		if res.Credits != want || res.ImageBase64 != "aW1n" {
			t.Fatalf("image %d = %+v, want credits %d", i, res, want)
		}
	}

	// A stale local balance lets the request through; the backend refuses.
	_, err := client.GenerateImage(ctx, guest, "kucing", 100)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want insufficient credits", err)
	}
}

func TestFailedChatRefunds(t *testing.T) {
	t.Parallel()

	_, client := newServer(t, &fakeChat{replyErr: errors.New("upstream down")})
	ctx := context.Background()

	_, err := client.SendMessage(ctx, "user@example.com", "halo", "")
	if domain.KindOf(err) != domain.KindFailure {
		t.Fatalf("err = %v, want failure kind", err)
	}
	credits, err := client.FetchCredits(ctx, "user@example.com")
	if err != nil || credits != domain.AccountDefaultBalance {
		t.Fatalf("credits = %d, %v; want %d", credits, err, domain.AccountDefaultBalance)
	}
}

func TestGuestLoginIssuesToken(t *testing.T) {
	t.Parallel()

	_, client := newServer(t, &fakeChat{})
	guest := domain.NewGuestIdentity()

	token, err := client.GuestLogin(context.Background(), guest)
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}
	if err := sessiontoken.Verify(testSecret, token, string(guest)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	credits, _ := client.FetchCredits(context.Background(), guest)
	if credits != domain.GuestDefaultBalance {
		t.Fatalf("guest credits = %d, want %d", credits, domain.GuestDefaultBalance)
	}
}

func TestGuestLoginRejectsNonGuest(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, &fakeChat{})
	resp, err := http.Post(srv.URL+"/api/guest-login", "application/json",
		strings.NewReader(`{"email":"user@example.com"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDevLoginRedirect(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, &fakeChat{})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(srv.URL + "/auth/google?email=user%40example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.Host != "gateway.test" || loc.Path != "/auth/callback" {
		t.Fatalf("location = %s", loc)
	}
	q := loc.Query()
	if q.Get("email") != "user@example.com" || q.Get("credits") != "75" {
		t.Fatalf("query = %v", q)
	}
	if err := sessiontoken.Verify(testSecret, q.Get("token"), "user@example.com"); err != nil {
		t.Fatalf("token: %v", err)
	}
}
