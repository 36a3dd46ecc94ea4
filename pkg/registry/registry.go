package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/melosso/portway/internal/logger"
	"github.com/melosso/portway/pkg/endpoint"
)

// Snapshot is an immutable view of every successfully loaded endpoint,
// keyed case-insensitively by full path (namespace/name). The registry
// never mutates a published Snapshot; a reload builds a new one and swaps
// the pointer atomically.
type Snapshot struct {
	byPath map[string]*endpoint.Definition // lowercased full path -> definition
	errors []LoadError
}

// LoadError records one descriptor file that failed to load; it does not
// prevent the rest of the tree from loading.
type LoadError struct {
	Path string
	Err  error
}

// Lookup resolves a full path case-insensitively. If two descriptors
// collide after lowercasing, the snapshot build discards both and records a
// LoadError rather than arbitrarily picking one (tie-break rule: ambiguous
// beats wrong).
func (s *Snapshot) Lookup(fullPath string) (*endpoint.Definition, bool) {
	def, ok := s.byPath[strings.ToLower(fullPath)]
	return def, ok
}

// Errors returns descriptor load failures from the most recent scan.
func (s *Snapshot) Errors() []LoadError { return s.errors }

// All returns every loaded definition, for admin/introspection use.
func (s *Snapshot) All() []*endpoint.Definition {
	out := make([]*endpoint.Definition, 0, len(s.byPath))
	seen := make(map[*endpoint.Definition]bool, len(s.byPath))
	for _, d := range s.byPath {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// Registry publishes the current Snapshot via an atomic pointer, so readers
// never block on a reload and never observe a partially built snapshot.
type Registry struct {
	root string
	cur  atomic.Pointer[Snapshot]
}

// New scans root once and returns a Registry holding the initial snapshot.
// A descriptor-level error does not fail New; only a root-directory read
// failure does.
func New(root string) (*Registry, error) {
	reg := &Registry{root: root}
	if err := reg.Reload(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Current returns the latest published snapshot.
func (r *Registry) Current() *Snapshot {
	return r.cur.Load()
}

// Reload rescans the descriptor tree and publishes a new snapshot.
func (r *Registry) Reload() error {
	snap, err := scan(r.root)
	if err != nil {
		return fmt.Errorf("registry: scan %s: %w", r.root, err)
	}
	for _, le := range snap.errors {
		logger.Warn("descriptor load failed", "path", le.Path, "error", le.Err)
	}
	logger.Info("registry reloaded", "endpoints", len(snap.All()), "errors", len(snap.errors))
	r.cur.Store(snap)
	return nil
}

func scan(root string) (*Snapshot, error) {
	byLowerPath := make(map[string]*endpoint.Definition)
	ambiguous := make(map[string]bool)
	var errs []LoadError

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		namespace := inferNamespace(root, path)
		def, loadErr := loadFile(path, namespace)
		if loadErr != nil {
			errs = append(errs, LoadError{Path: path, Err: loadErr})
			return nil
		}
		key := strings.ToLower(def.FullPath())
		if _, exists := byLowerPath[key]; exists {
			ambiguous[key] = true
			return nil
		}
		byLowerPath[key] = def
		return nil
	})
	if err != nil {
		return nil, err
	}

	for key := range ambiguous {
		delete(byLowerPath, key)
		errs = append(errs, LoadError{Path: key, Err: fmt.Errorf("ambiguous endpoint path %q: multiple descriptors resolve to it case-insensitively", key)})
	}

	snap := &Snapshot{byPath: byLowerPath, errors: errs}
	if composites := collectComposites(snap); len(composites) > 0 {
		if err := validateCompositeTargets(snap, composites); err != nil {
			snap.errors = append(snap.errors, LoadError{Path: root, Err: err})
		}
	}
	return snap, nil
}

func inferNamespace(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func collectComposites(snap *Snapshot) []*endpoint.Definition {
	var out []*endpoint.Definition
	for _, d := range snap.All() {
		if d.Kind == endpoint.KindComposite {
			out = append(out, d)
		}
	}
	return out
}

// validateCompositeTargets ensures every composite step references a
// proxy endpoint that actually exists in the snapshot, so a bad reference
// fails at load time rather than on first dispatch.
func validateCompositeTargets(snap *Snapshot, composites []*endpoint.Definition) error {
	for _, c := range composites {
		for _, step := range c.Composite.Steps {
			target, ok := snap.Lookup(step.Endpoint)
			if !ok {
				return fmt.Errorf("composite %q step %q references unknown endpoint %q", c.FullPath(), step.Name, step.Endpoint)
			}
			if target.Kind != endpoint.KindProxy {
				return fmt.Errorf("composite %q step %q references non-proxy endpoint %q", c.FullPath(), step.Name, step.Endpoint)
			}
		}
	}
	return nil
}
