package statichandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemStore is the default FileStore: each endpoint gets its own
// subdirectory under Root, holding "<id>" (bytes) and "<id>.meta" (JSON
// sidecar) pairs.
type FilesystemStore struct {
	Root string
}

func (s *FilesystemStore) dir(endpointName string) string {
	return filepath.Join(s.Root, endpointName)
}

func (s *FilesystemStore) Put(ctx context.Context, endpointName, id string, meta FileMeta, r io.Reader) error {
	dir := s.dir(endpointName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statichandler: create directory: %w", err)
	}
	path := filepath.Join(dir, id)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("statichandler: create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("statichandler: write file: %w", err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("statichandler: marshal meta: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaBytes, 0o644); err != nil {
		return fmt.Errorf("statichandler: write meta: %w", err)
	}
	return nil
}

func (s *FilesystemStore) Get(ctx context.Context, endpointName, id string) (io.ReadCloser, FileMeta, error) {
	var meta FileMeta
	path := filepath.Join(s.dir(endpointName), id)
	metaBytes, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, meta, ErrNotFound
	}
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, meta, fmt.Errorf("statichandler: corrupt meta for %s: %w", id, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, meta, ErrNotFound
	}
	return f, meta, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, endpointName, id string) error {
	path := filepath.Join(s.dir(endpointName), id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(path + ".meta")
	return nil
}

func (s *FilesystemStore) List(ctx context.Context, endpointName string) ([]FileMeta, error) {
	entries, err := os.ReadDir(s.dir(endpointName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var metas []FileMeta
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".meta" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir(endpointName), e.Name()))
		if err != nil {
			continue
		}
		var m FileMeta
		if json.Unmarshal(data, &m) == nil {
			metas = append(metas, m)
		}
	}
	return metas, nil
}

func (s *FilesystemStore) Exists(ctx context.Context, endpointName, id string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir(endpointName), id))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
