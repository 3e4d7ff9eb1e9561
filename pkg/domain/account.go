package domain

import (
	"time"
)

type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
	AuthProviderGuest  AuthProvider = "guest"
)

// Account is the backend's record of a user, as kept by the reference backend.
type Account struct {
	Email        Identity      `json:"email"`
	AuthProvider AuthProvider  `json:"auth_provider"`
	Credits      int           `json:"credits"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActive   time.Time     `json:"last_active"`
	History      []HistoryTurn `json:"history,omitempty"`
}
