// Package credentials persists opaque session credential snapshots produced
// by the messaging client.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/otpmd/otpmd/internal/session"
)

// FileName is the snapshot file written inside the session directory.
const FileName = "creds.json"

// FileStore writes snapshots to a single file in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Exists reports whether a snapshot has been saved before.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Save atomically replaces the snapshot with blob.
func (s *FileStore) Save(_ context.Context, blob []byte) error {
	tmp, err := os.CreateTemp(s.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credentials: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

// Load returns the last saved snapshot, or nil when none exists.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	blob, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return blob, nil
}

// Saver persists a snapshot.
type Saver interface {
	Save(ctx context.Context, blob []byte) error
}

// Persister writes every credential update it receives.
type Persister struct {
	saver  Saver
	logger *slog.Logger
}

// NewPersister builds a persister writing through saver.
func NewPersister(saver Saver, logger *slog.Logger) *Persister {
	return &Persister{saver: saver, logger: logger}
}

// Run consumes events until the channel closes or ctx ends.
func (p *Persister) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			ce, isCreds := evt.(session.CredentialsEvent)
			if !isCreds {
				continue
			}
			if err := p.saver.Save(ctx, ce.Snapshot); err != nil {
				p.logger.Error("persist credentials", slog.Any("error", err))
				continue
			}
			p.logger.Debug("credentials persisted", slog.Int("bytes", len(ce.Snapshot)))
		}
	}
}
