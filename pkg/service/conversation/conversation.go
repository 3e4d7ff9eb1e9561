// Package conversation holds the in-memory chat log of each device and
// guards it so that only one backend call is outstanding at a time.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maxwin66/companion/pkg/domain"
	"go.uber.org/atomic"
)

type Conversation struct {
	pending  *atomic.Bool
	mu       sync.RWMutex
	messages []domain.ChatMessage
	now      func() time.Time
}

func New() *Conversation {
	return &Conversation{
		pending: atomic.NewBool(false),
		now:     time.Now,
	}
}

// Pending reports whether a call is in flight.
func (c *Conversation) Pending() bool {
	return c.pending.Load()
}

// Run executes fn while holding the in-flight slot. A second call while one
// is pending returns domain.ErrBusy without running fn.
func (c *Conversation) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !c.pending.CompareAndSwap(false, true) {
		return domain.ErrBusy
	}
	defer c.pending.Store(false)
	return fn(ctx)
}

// Send appends the user's text, then runs ask under the in-flight guard and
// appends its reply. On failure the user's message stays in the log.
func (c *Conversation) Send(ctx context.Context, text string, ask func(ctx context.Context) (string, error)) (domain.ChatMessage, error) {
	var reply domain.ChatMessage
	err := c.Run(ctx, func(ctx context.Context) error {
		c.Append(domain.RoleUser, text)
		answer, err := ask(ctx)
		if err != nil {
			return err
		}
		reply = c.Append(domain.RoleAssistant, answer)
		return nil
	})
	return reply, err
}

func (c *Conversation) Append(role domain.Role, text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: c.now(),
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return msg
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Rehydrate replaces the log with history.
func (c *Conversation) Rehydrate(history []domain.ChatMessage) {
	c.mu.Lock()
	c.messages = append([]domain.ChatMessage(nil), history...)
	c.mu.Unlock()
}

// Registry hands out one Conversation per device.
type Registry struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
}

func NewRegistry() *Registry {
	return &Registry{conversations: make(map[string]*Conversation)}
}

func (r *Registry) Get(device string) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[device]
	if !ok {
		c = New()
		r.conversations[device] = c
	}
	return c
}

// Drop forgets the conversation of device, as on logout.
func (r *Registry) Drop(device string) {
	r.mu.Lock()
	delete(r.conversations, device)
	r.mu.Unlock()
}
