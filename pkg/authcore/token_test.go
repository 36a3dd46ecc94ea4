package authcore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/melosso/portway/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "tokens.db")
	store, err := NewStore(config.TokenStoreConfig{Type: config.DatabaseSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestIssueAndVerify(t *testing.T) {
	store := newTestStore(t)

	issued, err := Issue(store, IssueParams{Username: "alice", Scopes: []string{"default/orders"}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Raw == "" {
		t.Fatal("Issue returned empty raw token")
	}

	got, err := Verify(store, issued.Raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != issued.Token.ID {
		t.Errorf("Verify returned token %q, want %q", got.ID, issued.Token.ID)
	}
}

func TestVerifyRejectsTamperedSecret(t *testing.T) {
	store := newTestStore(t)
	issued, err := Issue(store, IssueParams{Username: "alice"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := issued.Raw[:len(issued.Raw)-1] + "x"
	if _, err := Verify(store, tampered); err != ErrTokenNotFound {
		t.Errorf("Verify(tampered) = %v, want ErrTokenNotFound", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	store := newTestStore(t)
	tests := []string{"", "notatoken", "pw_notauuid_secret", "wrongprefix_00000000-0000-0000-0000-000000000000_secret"}
	for _, raw := range tests {
		if _, err := Verify(store, raw); err != ErrMalformedToken {
			t.Errorf("Verify(%q) = %v, want ErrMalformedToken", raw, err)
		}
	}
}

func TestRevokeRejectsFutureVerify(t *testing.T) {
	store := newTestStore(t)
	issued, err := Issue(store, IssueParams{Username: "bob"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := Revoke(store, issued.Token.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := Verify(store, issued.Raw); err != ErrTokenRevoked {
		t.Errorf("Verify(revoked) = %v, want ErrTokenRevoked", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	store := newTestStore(t)
	past := time.Now().Add(-time.Hour)
	issued, err := Issue(store, IssueParams{Username: "carol", ExpiresAt: &past})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify(store, issued.Raw); err != ErrTokenExpired {
		t.Errorf("Verify(expired) = %v, want ErrTokenExpired", err)
	}
}

func TestRotateIssuesNewTokenAndRevokesOld(t *testing.T) {
	store := newTestStore(t)
	issued, err := Issue(store, IssueParams{Username: "dave", Scopes: []string{"default/orders"}, Environments: []string{"prod"}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rotated, err := Rotate(store, issued.Token.ID)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.Token.ID == issued.Token.ID {
		t.Error("Rotate reused the old token ID")
	}
	if got := rotated.Token.DecodedScopes(); len(got) != 1 || got[0] != "default/orders" {
		t.Errorf("Rotate did not carry scopes, got %v", got)
	}

	if _, err := Verify(store, issued.Raw); err != ErrTokenRevoked {
		t.Errorf("Verify(old raw after rotate) = %v, want ErrTokenRevoked", err)
	}
	if _, err := Verify(store, rotated.Raw); err != nil {
		t.Errorf("Verify(rotated raw) = %v, want nil", err)
	}
}

func TestUpdateScopesEnvironmentsExpiry(t *testing.T) {
	store := newTestStore(t)
	issued, err := Issue(store, IssueParams{Username: "erin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := UpdateScopes(store, issued.Token.ID, []string{"default/a", "default/b"}); err != nil {
		t.Fatalf("UpdateScopes: %v", err)
	}
	if err := UpdateEnvironments(store, issued.Token.ID, []string{"staging"}); err != nil {
		t.Fatalf("UpdateEnvironments: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := UpdateExpiry(store, issued.Token.ID, &future); err != nil {
		t.Fatalf("UpdateExpiry: %v", err)
	}

	tokens, err := List(store, "erin")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("List returned %d tokens, want 1", len(tokens))
	}
	got := tokens[0]
	if scopes := got.DecodedScopes(); len(scopes) != 2 {
		t.Errorf("scopes = %v, want 2 entries", scopes)
	}
	if envs := got.DecodedEnvironments(); len(envs) != 1 || envs[0] != "staging" {
		t.Errorf("environments = %v, want [staging]", envs)
	}
	if got.ExpiresAt == nil {
		t.Error("expiry was not set")
	}

	if err := UpdateExpiry(store, issued.Token.ID, nil); err != nil {
		t.Fatalf("UpdateExpiry(nil): %v", err)
	}
	tokens, _ = List(store, "erin")
	if tokens[0].ExpiresAt != nil {
		t.Error("expiry was not cleared")
	}
}

func TestListFiltersByUsername(t *testing.T) {
	store := newTestStore(t)
	if _, err := Issue(store, IssueParams{Username: "frank"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Issue(store, IssueParams{Username: "grace"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	all, err := List(store, "")
	if err != nil {
		t.Fatalf("List(all): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(all) = %d tokens, want 2", len(all))
	}

	frankOnly, err := List(store, "frank")
	if err != nil {
		t.Fatalf("List(frank): %v", err)
	}
	if len(frankOnly) != 1 || frankOnly[0].Username != "frank" {
		t.Errorf("List(frank) = %+v, want one token for frank", frankOnly)
	}
}
