// Package fs contains the file-system back-end. Each entity is stored as one JSON document
// under a base folder, see ToFilePath for the layout.
package fs

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.FileBackend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		return NewBackend(cfg.FS.BaseDir, nil), nil
	})
}

const permission os.FileMode = 0o644

// Backend is the file-system back-end.
type Backend struct {
	baseDir string
	fileIO  FileIO
}

// NewBackend returns a Backend storing documents under baseDir. A nil fileIO selects the
// default, retrying implementation.
func NewBackend(baseDir string, fileIO FileIO) *Backend {
	if fileIO == nil {
		fileIO = NewFileIO()
	}
	return &Backend{baseDir: baseDir, fileIO: fileIO}
}

// Init creates the base folder.
func (b *Backend) Init(ctx context.Context) error {
	if b.baseDir == "" {
		return fmt.Errorf("fs back-end: base folder not set")
	}
	if err := b.fileIO.MkdirAll(ctx, b.baseDir, 0o755); err != nil {
		return fmt.Errorf("fs back-end: create %s: %w", b.baseDir, err)
	}
	log.Debug("fs back-end ready", "base", b.baseDir)
	return nil
}

func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	fn := ToFilePath(b.baseDir, id)
	ba, err := b.fileIO.ReadFile(ctx, fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s (%s): %w", id, fn, err)
	}
	d, err := livepers.DecodeData(ba)
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", id, fn, err)
	}
	return d, nil
}

func (b *Backend) Write(ctx context.Context, data livepers.Data) error {
	id := data.ID()
	if id.IsNil() {
		return fmt.Errorf("write: document has no id")
	}
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	fn := ToFilePath(b.baseDir, id)
	if err := b.fileIO.WriteFile(ctx, fn, ba, permission); err != nil {
		return fmt.Errorf("write %s (%s): %w", id, fn, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	fn := ToFilePath(b.baseDir, id)
	if err := b.fileIO.Remove(ctx, fn); err != nil {
		return fmt.Errorf("delete %s (%s): %w", id, fn, err)
	}
	return nil
}

// Exists reports whether a document for id is stored.
func (b *Backend) Exists(ctx context.Context, id livepers.ID) bool {
	return b.fileIO.Exists(ctx, ToFilePath(b.baseDir, id))
}
