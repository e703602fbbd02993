package service

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/errs"
)

const backendURL = "https://backend.example.com/"

func snapshot(t *testing.T) challenge.Snapshot {
	t.Helper()
	env, err := convert.NewEnvelope(http.MethodDelete, "management/instances/shop", nil)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	f := challenge.New("admin", env.WithQuery("purge", "YES"), challengeSet(true, "ch-1"), &fakeBackend{}, &fakeSender{})
	return f.Snapshot()
}

func TestPendingStore_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewPendingStore(dir, []byte("secret-token:abc"))
	if err != nil {
		t.Fatalf("NewPendingStore: %v", err)
	}
	if _, err := p.Load(backendURL); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("empty store: want ErrNotFound, got %v", err)
	}

	snap := snapshot(t)
	if err := p.Save(backendURL, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, pendingFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(raw, []byte("management/instances")) {
		t.Fatalf("pending operation stored in clear")
	}

	// A second process with the same secret reuses the salt.
	q, err := NewPendingStore(dir, []byte("secret-token:abc"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := q.Load(backendURL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != snap.ID || got.Path != snap.Path || got.Query != "purge=YES" {
		t.Fatalf("loaded %+v, want %+v", got, snap)
	}

	if _, err := q.Load("https://other.example.com/"); err == nil {
		t.Fatalf("pending operation opened for another backend")
	}

	if err := q.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := q.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := q.Load(backendURL); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("after Clear: want ErrNotFound, got %v", err)
	}
}

func TestPendingStore_WrongSecret(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewPendingStore(dir, []byte("one"))
	if err != nil {
		t.Fatalf("NewPendingStore: %v", err)
	}
	if err := p.Save(backendURL, snapshot(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	q, err := NewPendingStore(dir, []byte("two"))
	if err != nil {
		t.Fatalf("NewPendingStore: %v", err)
	}
	if _, err := q.Load(backendURL); err == nil {
		t.Fatalf("opened with the wrong secret")
	}

	if _, err := NewPendingStore(dir, nil); err == nil {
		t.Fatalf("empty secret accepted")
	}
}
