// Package authcore implements opaque bearer-token issuance and verification:
// PBKDF2-SHA256 hashed tokens persisted through gorm, scoped to a username,
// a set of allowed environments, and an optional endpoint scope list.
package authcore

import "time"

// Token is the gorm-persisted record for one issued bearer token. The raw
// token value is never stored, only its PBKDF2 hash and the salt used to
// compute it.
type Token struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"index;not null;size:255" json:"username"`
	Description  string    `gorm:"size:500" json:"description"`
	HashedToken  string    `gorm:"uniqueIndex;not null;size:255" json:"-"`
	Salt         string    `gorm:"not null;size:255" json:"-"`
	Scopes       string    `gorm:"type:text" json:"-"` // JSON array of endpoint full-paths, empty = all
	Environments string    `gorm:"type:text" json:"-"` // JSON array of allowed environment names, empty = all
	Revoked      bool      `gorm:"default:false;index" json:"revoked"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// TableName pins the gorm table name regardless of struct name changes.
func (Token) TableName() string { return "tokens" }

// AllModels lists every model authcore owns, for AutoMigrate.
func AllModels() []any {
	return []any{&Token{}}
}
