package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Identity is an email-like account identifier.
type Identity string

const GuestDomain = "@guest.local"

const (
	GuestCeiling          = 25
	GuestDefaultBalance   = 25
	AccountDefaultBalance = 75

	// ImageMinimumPrice is the cheapest image generation the backend offers.
	ImageMinimumPrice = 10
)

// IsGuest reports whether identity carries the guest domain as its suffix.
// The suffix appearing anywhere else in the value does not count.
func IsGuest(identity Identity) bool {
	v := strings.ToLower(strings.TrimSpace(string(identity)))
	if len(v) <= len(GuestDomain) {
		return false
	}
	return strings.HasSuffix(v, GuestDomain)
}

// Clamp caps guest balances at GuestCeiling. Authenticated balances pass through.
// Negative balances are floored at zero for every identity.
func Clamp(identity Identity, balance int) int {
	if balance < 0 {
		balance = 0
	}
	if IsGuest(identity) && balance > GuestCeiling {
		return GuestCeiling
	}
	return balance
}

// DefaultBalance is the balance assumed when nothing is known for identity.
func DefaultBalance(identity Identity) int {
	if IsGuest(identity) {
		return GuestDefaultBalance
	}
	return AccountDefaultBalance
}

// NewGuestIdentity generates a fresh guest address.
func NewGuestIdentity() Identity {
	return Identity("guest-" + uuid.NewString() + GuestDomain)
}
