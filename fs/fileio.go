package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	retry "github.com/sethvargo/go-retry"

	"github.com/sharedcode/livepers"
)

// FileIO defines filesystem operations used by this package. The default
// implementation delegates to the standard library's os package with retry
// semantics for transient errors.
type FileIO interface {
	WriteFile(ctx context.Context, name string, data []byte, perm os.FileMode) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, path string) bool
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
}

type defaultFileIO struct {
}

// NewFileIO returns a FileIO that performs I/O via the os package with basic
// retry handling for transient errors.
func NewFileIO() FileIO {
	return &defaultFileIO{}
}

// retryable marks err for another attempt if it is transient; permanent errors end the retry loop.
func retryable(err error) error {
	if livepers.ShouldRetry(err) {
		return retry.RetryableError(
			livepers.Error{
				Code: livepers.FileIOError,
				Err:  err,
			})
	}
	return err
}

// WriteFile writes data to a temporary sibling of name, then renames it over name so readers
// never see a partial document. Missing parent folders are created.
func (dio defaultFileIO) WriteFile(ctx context.Context, name string, data []byte, perm os.FileMode) error {
	return livepers.Retry(ctx, func(context.Context) error {
		return retryable(writeAndRename(name, data, perm))
	}, nil)
}

func writeAndRename(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	f, err := os.CreateTemp(dir, filepath.Base(name)+".*")
	if errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(dir, 0o755); err == nil {
			f, err = os.CreateTemp(dir, filepath.Base(name)+".*")
		}
	}
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), perm)
	}
	if err == nil {
		err = os.Rename(f.Name(), name)
	}
	if err != nil {
		os.Remove(f.Name())
	}
	return err
}

func (dio defaultFileIO) ReadFile(ctx context.Context, name string) ([]byte, error) {
	ba, err := os.ReadFile(name)
	if !livepers.ShouldRetry(err) {
		return ba, err
	}
	err = livepers.Retry(ctx, func(context.Context) error {
		var err error
		ba, err = os.ReadFile(name)
		return retryable(err)
	}, nil)
	return ba, err
}

// Remove deletes name. A missing file is not an error.
func (dio defaultFileIO) Remove(ctx context.Context, name string) error {
	err := os.Remove(name)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if !livepers.ShouldRetry(err) {
		return err
	}
	return livepers.Retry(ctx, func(context.Context) error {
		err := os.Remove(name)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return retryable(err)
	}, nil)
}

func (dio defaultFileIO) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	return livepers.Retry(ctx, func(context.Context) error {
		err := os.MkdirAll(path, perm)
		if err != nil {
			return retryable(err)
		}
		return nil
	}, nil)
}

func (dio defaultFileIO) Exists(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return true
	}
	return false
}
