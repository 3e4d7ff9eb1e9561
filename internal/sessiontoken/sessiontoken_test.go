package sessiontoken

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")
	tok, err := Issue(secret, "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := Verify(secret, tok, "ALICE@example.com"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Verify(secret, tok, "bob@example.com"); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("Verify other email err = %v, want ErrEmailMismatch", err)
	}
	if err := Verify([]byte("other"), tok, "alice@example.com"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify wrong secret err = %v, want ErrInvalidToken", err)
	}
}

func TestExpiredToken(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")
	tok, err := Issue(secret, "alice@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(secret, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Parse expired err = %v, want ErrInvalidToken", err)
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := Issue(nil, "alice@example.com", time.Hour); err == nil {
		t.Fatal("expected error without secret")
	}
}
