// Package management implements the passphrase-protected management record
// that gates administrative token operations: issuing, revoking,
// and rescoping bearer tokens. The passphrase is hashed with PBKDF2-SHA256
// at a much higher iteration count than bearer tokens, since it is the root
// credential for the whole token-management surface.
package management

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"

	"golang.org/x/crypto/pbkdf2"

	"github.com/melosso/portway/internal/config"
)

func derivePassphrase(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, passphraseIterations, sha256.Size, sha256.New)
}

const (
	passphraseIterations = 310000
	passphraseSaltBytes  = 16
)

// Record is the single gorm-persisted row holding the management
// passphrase hash and lockout state.
type Record struct {
	ID              uint   `gorm:"primaryKey"`
	HashedPassphrase string `gorm:"not null;size:255"`
	Salt             string `gorm:"not null;size:255"`
	FailedAttempts   int    `gorm:"default:0"`
	LockedUntil      *time.Time
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (Record) TableName() string { return "management_record" }

// Store wraps the gorm handle and an in-process mutex serialising passphrase
// checks, so concurrent failed attempts cannot race past the lockout
// threshold.
type Store struct {
	db *gorm.DB
	mu sync.Mutex

	threshold int
	lockout   time.Duration
}

// NewStore opens (and migrates) the management record database.
func NewStore(cfg config.TokenStoreConfig, mgmt config.ManagementConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case config.DatabaseSQLite:
		dialector = sqlite.Open(cfg.DSN + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case config.DatabasePostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("management: unsupported database type %q", cfg.Type)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("management: connect: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("management: migrate: %w", err)
	}
	threshold := mgmt.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	lockout := mgmt.LockoutDuration
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &Store{db: db, threshold: threshold, lockout: lockout}, nil
}

// Bootstrap sets the initial passphrase. It fails if a record already
// exists, to avoid silently overwriting an operator-set passphrase.
func (s *Store) Bootstrap(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	if err := s.db.Model(&Record{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyBootstrapped
	}
	salt, hash, err := hashPassphrase(passphrase)
	if err != nil {
		return err
	}
	return s.db.Create(&Record{HashedPassphrase: hash, Salt: salt}).Error
}

// Verify checks passphrase against the stored record, enforcing the
// failed-attempt lockout window. A successful check resets FailedAttempts.
func (s *Store) Verify(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	now := time.Now()
	if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
		return ErrLockedOut
	}

	salt, err := base64.RawURLEncoding.DecodeString(rec.Salt)
	if err != nil {
		return ErrCorruptRecord
	}
	want, err := base64.RawURLEncoding.DecodeString(rec.HashedPassphrase)
	if err != nil {
		return ErrCorruptRecord
	}
	got := derivePassphrase(passphrase, salt)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		rec.FailedAttempts++
		if rec.FailedAttempts >= s.threshold {
			until := now.Add(s.lockout)
			rec.LockedUntil = &until
			rec.FailedAttempts = 0
		}
		_ = s.db.Save(rec).Error
		return ErrInvalidPassphrase
	}
	rec.FailedAttempts = 0
	rec.LockedUntil = nil
	return s.db.Save(rec).Error
}

// ChangePassphrase replaces the stored passphrase after verifying the
// current one.
func (s *Store) ChangePassphrase(current, next string) error {
	if err := s.Verify(current); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	salt, hash, err := hashPassphrase(next)
	if err != nil {
		return err
	}
	rec.Salt = salt
	rec.HashedPassphrase = hash
	return s.db.Save(rec).Error
}

func (s *Store) load() (*Record, error) {
	var rec Record
	if err := s.db.First(&rec).Error; err != nil {
		return nil, ErrNotBootstrapped
	}
	return &rec, nil
}

func hashPassphrase(passphrase string) (saltB64, hashB64 string, err error) {
	salt := make([]byte, passphraseSaltBytes)
	if _, err = rand.Read(salt); err != nil {
		return "", "", err
	}
	hash := derivePassphrase(passphrase, salt)
	return base64.RawURLEncoding.EncodeToString(salt), base64.RawURLEncoding.EncodeToString(hash), nil
}
