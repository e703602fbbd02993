package crypto

import (
	"bytes"
	"testing"
)

func TestFingerprint_Stable(t *testing.T) {
	t.Parallel()
	a := Fingerprint("POST", "management/instances", "", []byte(`{"id":"shop"}`))
	b := Fingerprint("POST", "management/instances", "", []byte(`{"id":"shop"}`))
	if len(a) != FingerprintLen {
		t.Fatalf("len=%d, want=%d", len(a), FingerprintLen)
	}
	if !SameFingerprint(a, b) {
		t.Fatalf("same request must give same fingerprint")
	}
}

func TestFingerprint_SensitiveToEveryPart(t *testing.T) {
	t.Parallel()
	base := Fingerprint("POST", "a/b", "x=1", []byte("body"))
	variants := [][]byte{
		Fingerprint("PATCH", "a/b", "x=1", []byte("body")),
		Fingerprint("POST", "a/c", "x=1", []byte("body")),
		Fingerprint("POST", "a/b", "x=2", []byte("body")),
		Fingerprint("POST", "a/b", "x=1", []byte("body ")),
		// shifting bytes between parts
		Fingerprint("POST", "a/bx", "=1", []byte("body")),
	}
	for i, v := range variants {
		if SameFingerprint(base, v) {
			t.Fatalf("variant %d collides with base", i)
		}
	}
	if SameFingerprint(nil, nil) {
		t.Fatalf("empty fingerprints must not compare equal")
	}
}

func TestSealOpen(t *testing.T) {
	t.Parallel()
	key := StateKey([]byte("secret-token:abc"), []byte("salt"))
	sub, err := SubKey(key, []byte("op-1"))
	if err != nil {
		t.Fatalf("SubKey: %v", err)
	}
	other, _ := SubKey(key, []byte("op-2"))
	if bytes.Equal(sub, other) {
		t.Fatalf("sub keys must differ per info")
	}

	plain := []byte(`{"method":"POST"}`)
	sealed, err := Seal(sub, plain, []byte("op-1"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := Open(sub, sealed, []byte("op-1"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("open != original")
	}

	if _, err := Open(sub, sealed, []byte("op-2")); err == nil {
		t.Fatalf("Open with other aad must fail")
	}
	if _, err := Open(other, sealed, []byte("op-1")); err == nil {
		t.Fatalf("Open with other key must fail")
	}
	if _, err := Open(sub, []byte("short"), nil); err != ErrSealedTooShort {
		t.Fatalf("want ErrSealedTooShort, got %v", err)
	}
}
