package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/flock"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/world"
)

const backendFile = "file"

// FileStore keeps the aggregate in a JSON file guarded by an advisory lock
// on a sidecar "<path>.lock" file. Reads take a shared lock; WriteAll and
// Update take an exclusive lock for their full duration.
//
// A document that cannot be decoded is treated as empty and replaced by the
// next write.
type FileStore struct {
	path   string
	opts   options
	logger *logging.Logger
}

// NewFileStore returns a FileStore for path, creating its directory.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{
		path:   path,
		opts:   o,
		logger: o.logger.WithBackend(backendFile).With("path", path),
	}, nil
}

// Name implements Store.
func (fs *FileStore) Name() string {
	return backendFile
}

// Path returns the state file path.
func (fs *FileStore) Path() string {
	return fs.path
}

// LockPath returns the path of the sidecar lock file.
func (fs *FileStore) LockPath() string {
	return fs.path + ".lock"
}

// Exists reports whether the state file has been written yet.
func (fs *FileStore) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(fs.path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fs.storeErr("stat", err)
	}
}

// ReadAll implements Store.
func (fs *FileStore) ReadAll(ctx context.Context) (*world.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := flock.New(fs.LockPath())
	if err := l.RLock(); err != nil {
		return nil, fs.storeErr("lock", err)
	}
	defer func() { _ = l.Unlock() }()

	return fs.read()
}

// WriteAll implements Store.
func (fs *FileStore) WriteAll(ctx context.Context, s *world.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := flock.New(fs.LockPath())
	if err := l.Lock(); err != nil {
		return fs.storeErr("lock", err)
	}
	defer func() { _ = l.Unlock() }()

	return fs.write(s.Clone())
}

// Update implements Store.
func (fs *FileStore) Update(ctx context.Context, fn Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := flock.New(fs.LockPath())
	if err := l.Lock(); err != nil {
		return fs.storeErr("lock", err)
	}
	defer func() { _ = l.Unlock() }()

	st, err := fs.read()
	if err != nil {
		return err
	}
	write, err := applyMutation(st, fn)
	if err != nil || !write {
		return err
	}
	return fs.write(st)
}

// read must be called with the lock held.
func (fs *FileStore) read() (*world.State, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return world.New(fs.opts.now()), nil
		}
		return nil, fs.storeErr("read", err)
	}

	st, err := world.Decode(data, fs.opts.now())
	if err != nil {
		fs.logger.Warn("state file unreadable, starting from empty state",
			"bytes", len(data),
			"error", err.Error())
		return world.New(fs.opts.now()), nil
	}
	return st, nil
}

// write must be called with the exclusive lock held.
func (fs *FileStore) write(s *world.State) error {
	stamp(s, fs.opts.now())
	data, err := world.Encode(s)
	if err != nil {
		return fs.storeErr("encode", err)
	}
	if err := atomicWriteFile(fs.path, data, 0644); err != nil {
		return fs.storeErr("write", err)
	}
	return nil
}

func (fs *FileStore) storeErr(op string, err error) error {
	return errors.NewStoreError(op, err).WithBackend(backendFile).WithKey(fs.path)
}

// atomicWriteFile writes data to a temp file in the target directory,
// syncs it and renames it over path, so readers see either the old or the
// new document.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
