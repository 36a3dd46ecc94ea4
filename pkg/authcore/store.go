package authcore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/melosso/portway/internal/config"
)

// Store is the gorm-backed persistence layer for tokens.
type Store struct {
	db *gorm.DB
}

// NewStore opens (and migrates) the token store database described by cfg.
func NewStore(cfg config.TokenStoreConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case config.DatabaseSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("authcore: create database directory: %w", err)
			}
		}
		dsn := cfg.DSN + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case config.DatabasePostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("authcore: unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("authcore: connect: %w", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("authcore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) create(t *Token) error {
	return s.db.Create(t).Error
}

func (s *Store) findByID(id string) (*Token, error) {
	var t Token
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) findAllByHashPrefix(hashPrefix string) ([]Token, error) {
	var tokens []Token
	if err := s.db.Where("hashed_token LIKE ?", hashPrefix+"%").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *Store) listByUsername(username string) ([]Token, error) {
	var tokens []Token
	q := s.db.Order("created_at desc")
	if username != "" {
		q = q.Where("username = ?", username)
	}
	if err := q.Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *Store) save(t *Token) error {
	return s.db.Save(t).Error
}

func (s *Store) touchLastUsed(id string, when any) error {
	return s.db.Model(&Token{}).Where("id = ?", id).Update("last_used_at", when).Error
}
