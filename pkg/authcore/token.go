package authcore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

const (
	tokenIterations = 10000
	tokenSaltBytes  = 16
	tokenSecretLen  = 128
	tokenAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	tokenPrefix     = "pw"
)

// Issued is the result of a successful Issue call: the caller must show the
// raw token to the operator exactly once, since only its hash is retained.
type Issued struct {
	Token  *Token
	Raw    string
}

// IssueParams describes a new token request.
type IssueParams struct {
	Username     string
	Description  string
	Scopes       []string // endpoint full-paths; empty means all endpoints
	Environments []string // environment names; empty means all environments
	ExpiresAt    *time.Time
}

// Issue creates and persists a new token, returning the one-time raw value.
func Issue(store *Store, p IssueParams) (*Issued, error) {
	secret, err := randomSecret(tokenSecretLen)
	if err != nil {
		return nil, fmt.Errorf("authcore: generate secret: %w", err)
	}
	id := uuid.NewString()
	raw := fmt.Sprintf("%s_%s_%s", tokenPrefix, id, secret)

	salt, err := randomBytes(tokenSaltBytes)
	if err != nil {
		return nil, fmt.Errorf("authcore: generate salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(secret), salt, tokenIterations, sha256.Size, sha256.New)

	scopesJSON, _ := json.Marshal(p.Scopes)
	envsJSON, _ := json.Marshal(p.Environments)

	t := &Token{
		ID:           id,
		Username:     p.Username,
		Description:  p.Description,
		HashedToken:  base64.RawURLEncoding.EncodeToString(hash),
		Salt:         base64.RawURLEncoding.EncodeToString(salt),
		Scopes:       string(scopesJSON),
		Environments: string(envsJSON),
		ExpiresAt:    p.ExpiresAt,
	}
	if err := store.create(t); err != nil {
		return nil, fmt.Errorf("authcore: persist token: %w", err)
	}
	return &Issued{Token: t, Raw: raw}, nil
}

// Verify parses a raw bearer token, looks up its record by embedded id, and
// checks the secret against the stored PBKDF2 hash in constant time. It
// rejects revoked or expired tokens.
func Verify(store *Store, raw string) (*Token, error) {
	id, secret, ok := splitToken(raw)
	if !ok {
		return nil, ErrMalformedToken
	}
	t, err := store.findByID(id)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	salt, err := base64.RawURLEncoding.DecodeString(t.Salt)
	if err != nil {
		return nil, ErrMalformedToken
	}
	want, err := base64.RawURLEncoding.DecodeString(t.HashedToken)
	if err != nil {
		return nil, ErrMalformedToken
	}
	got := pbkdf2.Key([]byte(secret), salt, tokenIterations, sha256.Size, sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrTokenNotFound
	}
	if t.Revoked {
		return nil, ErrTokenRevoked
	}
	if t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	now := time.Now()
	_ = store.touchLastUsed(t.ID, now)
	return t, nil
}

// Revoke marks a token unusable without deleting its audit record.
func Revoke(store *Store, id string) error {
	t, err := store.findByID(id)
	if err != nil {
		return ErrTokenNotFound
	}
	t.Revoked = true
	return store.save(t)
}

// Rotate revokes id and issues a fresh token carrying the same scopes,
// environments, username and description.
func Rotate(store *Store, id string) (*Issued, error) {
	t, err := store.findByID(id)
	if err != nil {
		return nil, ErrTokenNotFound
	}
	var scopes, envs []string
	_ = json.Unmarshal([]byte(t.Scopes), &scopes)
	_ = json.Unmarshal([]byte(t.Environments), &envs)

	if err := Revoke(store, id); err != nil {
		return nil, err
	}
	return Issue(store, IssueParams{
		Username:     t.Username,
		Description:  t.Description,
		Scopes:       scopes,
		Environments: envs,
		ExpiresAt:    t.ExpiresAt,
	})
}

// UpdateScopes replaces the endpoint scope list of an existing token.
func UpdateScopes(store *Store, id string, scopes []string) error {
	t, err := store.findByID(id)
	if err != nil {
		return ErrTokenNotFound
	}
	data, _ := json.Marshal(scopes)
	t.Scopes = string(data)
	return store.save(t)
}

// UpdateEnvironments replaces the allowed-environments list of an existing
// token.
func UpdateEnvironments(store *Store, id string, envs []string) error {
	t, err := store.findByID(id)
	if err != nil {
		return ErrTokenNotFound
	}
	data, _ := json.Marshal(envs)
	t.Environments = string(data)
	return store.save(t)
}

// UpdateExpiry replaces a token's expiry, or clears it when expiresAt is nil.
func UpdateExpiry(store *Store, id string, expiresAt *time.Time) error {
	t, err := store.findByID(id)
	if err != nil {
		return ErrTokenNotFound
	}
	t.ExpiresAt = expiresAt
	return store.save(t)
}

// List returns tokens for username, or every token when username is empty.
func List(store *Store, username string) ([]Token, error) {
	return store.listByUsername(username)
}

// Scopes decodes the token's scope list.
func (t *Token) DecodedScopes() []string {
	var s []string
	_ = json.Unmarshal([]byte(t.Scopes), &s)
	return s
}

// Environments decodes the token's allowed-environment list.
func (t *Token) DecodedEnvironments() []string {
	var e []string
	_ = json.Unmarshal([]byte(t.Environments), &e)
	return e
}

func splitToken(raw string) (id, secret string, ok bool) {
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 || parts[0] != tokenPrefix {
		return "", "", false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func randomSecret(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}
