package management

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/melosso/portway/internal/config"
)

func newTestStore(t *testing.T, threshold int, lockout time.Duration) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "management.db")
	store, err := NewStore(
		config.TokenStoreConfig{Type: config.DatabaseSQLite, DSN: dsn},
		config.ManagementConfig{LockoutThreshold: threshold, LockoutDuration: lockout},
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestVerifyBeforeBootstrapFails(t *testing.T) {
	store := newTestStore(t, 5, 0)
	if err := store.Verify("anything"); err != ErrNotBootstrapped {
		t.Errorf("Verify before Bootstrap = %v, want ErrNotBootstrapped", err)
	}
}

func TestBootstrapThenVerify(t *testing.T) {
	store := newTestStore(t, 5, 0)
	if err := store.Bootstrap("correct-horse-battery-staple"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := store.Verify("correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify(correct) = %v, want nil", err)
	}
	if err := store.Verify("wrong-passphrase"); err != ErrInvalidPassphrase {
		t.Errorf("Verify(wrong) = %v, want ErrInvalidPassphrase", err)
	}
}

func TestBootstrapTwiceFails(t *testing.T) {
	store := newTestStore(t, 5, 0)
	if err := store.Bootstrap("first-passphrase"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := store.Bootstrap("second-passphrase"); err != ErrAlreadyBootstrapped {
		t.Errorf("Bootstrap (again) = %v, want ErrAlreadyBootstrapped", err)
	}
}

func TestLockoutAfterThresholdFailedAttempts(t *testing.T) {
	store := newTestStore(t, 3, time.Hour)
	if err := store.Bootstrap("the-real-passphrase"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.Verify("wrong"); err != ErrInvalidPassphrase {
			t.Fatalf("Verify(wrong) attempt %d = %v, want ErrInvalidPassphrase", i, err)
		}
	}
	if err := store.Verify("the-real-passphrase"); err != ErrLockedOut {
		t.Errorf("Verify after threshold = %v, want ErrLockedOut", err)
	}
}

func TestChangePassphraseRequiresCurrent(t *testing.T) {
	store := newTestStore(t, 5, 0)
	if err := store.Bootstrap("old-passphrase"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := store.ChangePassphrase("wrong-current", "new-passphrase"); err != ErrInvalidPassphrase {
		t.Errorf("ChangePassphrase(wrong current) = %v, want ErrInvalidPassphrase", err)
	}
	if err := store.ChangePassphrase("old-passphrase", "new-passphrase"); err != nil {
		t.Fatalf("ChangePassphrase: %v", err)
	}
	if err := store.Verify("new-passphrase"); err != nil {
		t.Errorf("Verify(new) after change = %v, want nil", err)
	}
	if err := store.Verify("old-passphrase"); err != ErrInvalidPassphrase {
		t.Errorf("Verify(old) after change = %v, want ErrInvalidPassphrase", err)
	}
}
