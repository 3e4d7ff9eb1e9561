package domain

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is the resolved view of who is logged in on a device and how
// many credits they hold. Guest is always derived from Identity.
type Session struct {
	Identity Identity `json:"email"`
	Credits  int      `json:"credits"`
	Token    string   `json:"-"`
	Guest    bool     `json:"guest"`
}

func NewSession(identity Identity, credits int, token string) Session {
	return Session{
		Identity: identity,
		Credits:  Clamp(identity, credits),
		Token:    token,
		Guest:    IsGuest(identity),
	}
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryTurn is one question/answer pair as the backend reports it.
type HistoryTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type OfferingStatus string

const (
	OfferingAvailable   OfferingStatus = "available"
	OfferingUnavailable OfferingStatus = "unavailable"
)

type Offering struct {
	ServiceID string         `json:"service_id"`
	Name      string         `json:"name"`
	Country   string         `json:"country"`
	Price     int64          `json:"price"`
	Status    OfferingStatus `json:"status"`
	Duration  string         `json:"duration"`
	Premium   bool           `json:"premium"`
}

type LeaseStatus string

const (
	LeaseActive  LeaseStatus = "active"
	LeaseExpired LeaseStatus = "expired"
)

type Lease struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	ServiceID    string      `json:"service_id,omitempty"`
	ActivatedAt  *time.Time  `json:"activated_at,omitempty"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	MessageCount int         `json:"message_count"`
	Status       LeaseStatus `json:"status"`
}

type SMS struct {
	ID         string     `json:"id"`
	LeaseID    string     `json:"lease_id,omitempty"`
	Sender     string     `json:"sender"`
	Text       string     `json:"text"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// PremiumThreshold is the price above which an offering is premium.
const PremiumThreshold int64 = 10000

// IsPremium reports whether an offering at price is premium. Equality is not premium.
func IsPremium(price int64) bool {
	return price > PremiumThreshold
}
