// Package envregistry resolves the operator-configured environment name in
// a request path's "{env}" segment to a pooled SQL connection, enforcing
// the allow-list of known environments and a bounded wait for pool
// acquisition.
package envregistry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/pkg/apierrors"
)

// Registry holds one connection pool per configured environment name.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*environment
}

type environment struct {
	name           string
	driver         string
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// New builds a Registry from the environments section of the config,
// eagerly opening a pool per entry so a misconfigured DSN fails fast at
// startup rather than on the first request.
func New(ctx context.Context, envs map[string]config.EnvironmentConfig) (*Registry, error) {
	reg := &Registry{pools: make(map[string]*environment, len(envs))}
	for name, cfg := range envs {
		env, err := newEnvironment(ctx, name, cfg)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("envregistry: environment %q: %w", name, err)
		}
		reg.pools[name] = env
	}
	return reg, nil
}

func newEnvironment(ctx context.Context, name string, cfg config.EnvironmentConfig) (*environment, error) {
	if cfg.Driver != "postgres" {
		// Only the pgx pool is wired for live acquisition; other drivers are
		// accepted by config validation for descriptor authoring purposes but
		// the connection layer here targets Postgres-compatible backends.
		return nil, fmt.Errorf("unsupported live driver %q, only postgres is pooled", cfg.Driver)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	acquire := cfg.AcquireTimeout
	if acquire <= 0 {
		acquire = 5 * time.Second
	}
	return &environment{name: name, driver: cfg.Driver, pool: pool, acquireTimeout: acquire}, nil
}

// Allowed reports whether name is a configured environment.
func (r *Registry) Allowed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pools[name]
	return ok
}

// Names returns the configured environment names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pools))
	for n := range r.pools {
		names = append(names, n)
	}
	return names
}

// Acquire resolves name to a live pgx connection, bounded by the
// environment's AcquireTimeout. A pool-exhaustion timeout is surfaced as
// apierrors.Unavailable, never as a generic error, so the dispatcher maps it
// to 503 instead of 500.
func (r *Registry) Acquire(ctx context.Context, name string) (*pgxpool.Conn, error) {
	r.mu.RLock()
	env, ok := r.pools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apierrors.Newf(apierrors.NotFound, "unknown environment %q", name)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, env.acquireTimeout)
	defer cancel()

	conn, err := env.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Unavailable, fmt.Sprintf("environment %q connection pool exhausted", name), err)
	}
	return conn, nil
}

// Close releases every pool. Safe to call on a partially built Registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, env := range r.pools {
		env.pool.Close()
	}
	r.pools = nil
}
