package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/crypto"
	"github.com/and161185/taler-client/internal/errs"
)

const (
	pendingFile = "pending.sealed"
	saltFile    = "pending.salt"
	saltLen     = 16
)

var pendingInfo = []byte("taler-client pending operation v1")

// PendingStore keeps one challenged operation on disk, sealed with a key
// derived from a secret such as the access token. The backend URL is bound
// as associated data, so a pending operation cannot be opened for another
// backend.
type PendingStore struct {
	dir string
	key []byte
}

// NewPendingStore opens dir, creating it and its salt on first use.
func NewPendingStore(dir string, secret []byte) (*PendingStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("pending store: empty secret")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("pending store: %w", err)
	}
	salt, err := loadSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	key, err := crypto.SubKey(crypto.StateKey(secret, salt), pendingInfo)
	if err != nil {
		return nil, err
	}
	return &PendingStore{dir: dir, key: key}, nil
}

func loadSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltLen {
		return salt, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	salt, err = crypto.RandBytes(saltLen)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}

// Save replaces the pending operation for backend.
func (p *PendingStore) Save(backend string, s challenge.Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(p.key, raw, []byte(backend))
	if err != nil {
		return err
	}
	tmp := filepath.Join(p.dir, pendingFile+".tmp")
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write pending: %w", err)
	}
	return os.Rename(tmp, filepath.Join(p.dir, pendingFile))
}

// Load returns the pending operation for backend, or errs.ErrNotFound.
func (p *PendingStore) Load(backend string) (challenge.Snapshot, error) {
	sealed, err := os.ReadFile(filepath.Join(p.dir, pendingFile))
	if errors.Is(err, fs.ErrNotExist) {
		return challenge.Snapshot{}, fmt.Errorf("no pending operation: %w", errs.ErrNotFound)
	}
	if err != nil {
		return challenge.Snapshot{}, fmt.Errorf("read pending: %w", err)
	}
	raw, err := crypto.Open(p.key, sealed, []byte(backend))
	if err != nil {
		return challenge.Snapshot{}, fmt.Errorf("open pending operation: %w", err)
	}
	var s challenge.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return challenge.Snapshot{}, fmt.Errorf("decode pending operation: %w", err)
	}
	return s, nil
}

// Clear forgets the pending operation.
func (p *PendingStore) Clear() error {
	err := os.Remove(filepath.Join(p.dir, pendingFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
