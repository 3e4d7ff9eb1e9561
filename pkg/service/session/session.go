// Package session resolves who is logged in on a device and with how many
// credits, from URL parameters, persisted device state and backend reports.
package session

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/maxwin66/companion/internal/sessiontoken"
	"github.com/maxwin66/companion/pkg/domain"
	"github.com/maxwin66/companion/pkg/repository/statestore"
)

// Query parameters set by the OAuth redirect.
const (
	ParamEmail   = "email"
	ParamToken   = "token"
	ParamCredits = "credits"
)

// State is the persisted key/value view of one device.
type State interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type CreditsFetcher interface {
	FetchCredits(ctx context.Context, identity domain.Identity) (int, error)
}

type Resolver struct {
	state       State
	tokenSecret []byte
}

// NewResolver returns a resolver over state. When tokenSecret is set, a
// token arriving with an OAuth redirect must have been issued for the email
// it accompanies.
func NewResolver(state State, tokenSecret []byte) *Resolver {
	return &Resolver{state: state, tokenSecret: tokenSecret}
}

type Resolution struct {
	Session domain.Session
	// Consumed is set when the URL carried session parameters that the
	// caller should strip.
	Consumed bool
}

// HasSessionParams reports whether query carries any redirect parameters.
func HasSessionParams(query url.Values) bool {
	return query.Get(ParamEmail) != "" || query.Get(ParamToken) != "" || query.Get(ParamCredits) != ""
}

// Resolve determines identity and balance. It returns domain.ErrAuthRequired
// when no identity is known; callers redirect instead of rendering.
func (r *Resolver) Resolve(ctx context.Context, query url.Values) (Resolution, error) {
	var res Resolution

	stored := domain.Identity(r.get(ctx, statestore.KeyEmail))
	identity := stored
	// With a secret configured, a URL balance counts only next to a verified token.
	trustURL := len(r.tokenSecret) == 0

	if email := strings.TrimSpace(query.Get(ParamEmail)); email != "" {
		token := strings.TrimSpace(query.Get(ParamToken))
		if len(r.tokenSecret) > 0 {
			if token == "" {
				return res, domain.NewError(domain.KindAuthRequired, "session token missing")
			}
			if err := sessiontoken.Verify(r.tokenSecret, token, email); err != nil {
				return res, domain.WrapError(domain.KindAuthRequired, "session token rejected", err)
			}
			trustURL = true
		}
		identity = domain.Identity(email)
		res.Consumed = true

		if identity != stored {
			// A balance persisted for a different identity does not carry over.
			r.delete(ctx, statestore.KeyCredits, statestore.KeyToken)
		}
		r.set(ctx, statestore.KeyEmail, string(identity))
		if token != "" {
			r.set(ctx, statestore.KeyToken, token)
		}
	}

	if identity == "" {
		return res, domain.ErrAuthRequired
	}

	if query.Get(ParamCredits) != "" {
		res.Consumed = true
	}
	balance, fromURL := parseBalance(query.Get(ParamCredits))
	if !fromURL || !trustURL {
		if v, ok := parseBalance(r.get(ctx, statestore.KeyCredits)); ok {
			balance = v
		} else {
			balance = domain.DefaultBalance(identity)
		}
	}

	balance = domain.Clamp(identity, balance)
	r.set(ctx, statestore.KeyCredits, strconv.Itoa(balance))

	res.Session = domain.NewSession(identity, balance, r.get(ctx, statestore.KeyToken))
	return res, nil
}

// Login starts a session for identity with the role default balance.
func (r *Resolver) Login(ctx context.Context, identity domain.Identity, token string) (domain.Session, error) {
	if strings.TrimSpace(string(identity)) == "" {
		return domain.Session{}, domain.NewError(domain.KindValidationFailure, "identity is required")
	}
	if err := r.state.Set(ctx, statestore.KeyEmail, string(identity)); err != nil {
		return domain.Session{}, domain.WrapError(domain.KindFailure, "persist identity", err)
	}
	if token != "" {
		r.set(ctx, statestore.KeyToken, token)
	} else {
		r.delete(ctx, statestore.KeyToken)
	}
	balance := domain.Clamp(identity, domain.DefaultBalance(identity))
	r.set(ctx, statestore.KeyCredits, strconv.Itoa(balance))
	return domain.NewSession(identity, balance, token), nil
}

// Update clamps balance for identity and persists it. Every balance write
// goes through here.
func (r *Resolver) Update(ctx context.Context, identity domain.Identity, balance int) int {
	balance = domain.Clamp(identity, balance)
	r.set(ctx, statestore.KeyCredits, strconv.Itoa(balance))
	return balance
}

// Reconcile asks the backend for the current balance. On failure the
// locally known balance stands.
func (r *Resolver) Reconcile(ctx context.Context, sess domain.Session, fetcher CreditsFetcher) domain.Session {
	credits, err := fetcher.FetchCredits(ctx, sess.Identity)
	if err != nil {
		log.Printf("Keeping local credits for %s: %v", sess.Identity, err)
		return sess
	}
	sess.Credits = r.Update(ctx, sess.Identity, credits)
	return sess
}

// Logout forgets identity, balance and token.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.state.Delete(ctx, statestore.KeyEmail, statestore.KeyCredits, statestore.KeyToken); err != nil {
		return domain.WrapError(domain.KindFailure, "clear session", err)
	}
	return nil
}

func parseBalance(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (r *Resolver) get(ctx context.Context, key string) string {
	v, ok, err := r.state.Get(ctx, key)
	if err != nil {
		log.Printf("Reading %s from state: %v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (r *Resolver) set(ctx context.Context, key, value string) {
	if err := r.state.Set(ctx, key, value); err != nil {
		log.Printf("Writing %s to state: %v", key, err)
	}
}

func (r *Resolver) delete(ctx context.Context, keys ...string) {
	if err := r.state.Delete(ctx, keys...); err != nil {
		log.Printf("Deleting %v from state: %v", keys, err)
	}
}
