package userprovider

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/maxwin66/companion/pkg/domain"
)

// HISTORY_LIMIT bounds the turns kept per account.
const HISTORY_LIMIT = 50

type UserProvider struct {
	accounts map[domain.Identity]*domain.Account
	mu       sync.RWMutex
	now      func() time.Time
}

func NewUserProvider() *UserProvider {
	return &UserProvider{
		accounts: make(map[domain.Identity]*domain.Account),
		now:      time.Now,
	}
}

func normalize(email domain.Identity) domain.Identity {
	return domain.Identity(strings.ToLower(strings.TrimSpace(string(email))))
}

// GetOrCreate returns the account for email, creating it with the starting
// balance of its provider.
func (p *UserProvider) GetOrCreate(email domain.Identity) (domain.Account, error) {
	email = normalize(email)
	if email == "" {
		return domain.Account{}, ErrInvalidEmail
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if account, exists := p.accounts[email]; exists {
		return copyAccount(account), nil
	}

	log.Println("Creating account in user provider:", email)
	provider := domain.AuthProviderGoogle
	if domain.IsGuest(email) {
		provider = domain.AuthProviderGuest
	}
	now := p.now()
	account := &domain.Account{
		Email:        email,
		AuthProvider: provider,
		Credits:      domain.DefaultBalance(email),
		CreatedAt:    now,
		LastActive:   now,
	}
	p.accounts[email] = account
	return copyAccount(account), nil
}

func (p *UserProvider) GetAccount(email domain.Identity) (domain.Account, error) {
	p.mu.RLock()
	account, exists := p.accounts[normalize(email)]
	p.mu.RUnlock()

	if !exists {
		return domain.Account{}, ErrUserNotFound
	}
	return copyAccount(account), nil
}

// Spend debits cost from the account and returns the remaining balance. The
// balance is untouched when it does not cover cost.
func (p *UserProvider) Spend(email domain.Identity, cost int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, exists := p.accounts[normalize(email)]
	if !exists {
		return 0, ErrUserNotFound
	}
	if account.Credits < cost {
		return account.Credits, ErrInsufficientCredits
	}
	account.Credits -= cost
	account.LastActive = p.now()
	return account.Credits, nil
}

// Refund returns amount to the account after a failed paid operation.
func (p *UserProvider) Refund(email domain.Identity, amount int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, exists := p.accounts[normalize(email)]
	if !exists {
		return 0, ErrUserNotFound
	}
	account.Credits += amount
	return account.Credits, nil
}

func (p *UserProvider) AppendHistory(email domain.Identity, turn domain.HistoryTurn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, exists := p.accounts[normalize(email)]
	if !exists {
		return ErrUserNotFound
	}
	account.History = append(account.History, turn)
	if len(account.History) > HISTORY_LIMIT {
		account.History = account.History[len(account.History)-HISTORY_LIMIT:]
	}
	account.LastActive = p.now()
	return nil
}

func copyAccount(a *domain.Account) domain.Account {
	out := *a
	out.History = append([]domain.HistoryTurn(nil), a.History...)
	return out
}

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidEmail        = errors.New("email is required")
	ErrInsufficientCredits = errors.New("insufficient credits")
)
