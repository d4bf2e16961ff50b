package keys

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"testing"
)

// mapStore is an in-memory KeyStore for tests.
type mapStore struct {
	keys map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{keys: make(map[string][]byte)}
}

func (s *mapStore) Save(ctx context.Context, artifactID, keyID string, key []byte) error {
	s.keys[artifactID+"/"+keyID] = append([]byte(nil), key...)
	return nil
}

func (s *mapStore) Load(ctx context.Context, artifactID, keyID string) ([]byte, error) {
	key, ok := s.keys[artifactID+"/"+keyID]
	if !ok {
		return nil, fmt.Errorf("key %s not found", keyID)
	}
	return key, nil
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key) != keySize {
		t.Fatalf("key length = %d, want %d", len(key), keySize)
	}

	plaintext := []byte("radiograph bytes")
	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed payload leaks plaintext")
	}

	opened, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip = %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	key, _ := GenerateKey()
	sealed, err := Seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	sealed[len(sealed)-1] ^= 0xFF
	if _, err := Open(key, sealed); err == nil {
		t.Fatal("tampered payload should not open")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key, _ := GenerateKey()
	other, _ := GenerateKey()
	sealed, _ := Seal(key, []byte("payload"))

	if _, err := Open(other, sealed); err == nil {
		t.Fatal("wrong key should not open")
	}
}

func TestOpenRejectsShortPayload(t *testing.T) {
	key, _ := GenerateKey()
	if _, err := Open(key, []byte{0x01}); err == nil {
		t.Fatal("payload shorter than the nonce should not open")
	}
}

func TestManagerMintAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	m, err := NewManager(store, "")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	key, keyID, err := m.MintKey(ctx, "artifact-1")
	if err != nil {
		t.Fatalf("MintKey failed: %v", err)
	}
	if keyID == "" {
		t.Error("key ID is empty")
	}

	got, err := m.RetrieveKey(ctx, "artifact-1", keyID)
	if err != nil {
		t.Fatalf("RetrieveKey failed: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("retrieved key differs from minted key")
	}

	// Per-artifact keys are unique.
	key2, _, err := m.MintKey(ctx, "artifact-2")
	if err != nil {
		t.Fatalf("second MintKey failed: %v", err)
	}
	if bytes.Equal(key, key2) {
		t.Error("two artifacts share a key")
	}
}

func TestManagerRetrieveUnknownKey(t *testing.T) {
	m, err := NewManager(newMapStore(), "")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.RetrieveKey(context.Background(), "artifact-1", "ghost"); err == nil {
		t.Fatal("unknown key should not resolve")
	}
}

func TestManagerMasterKeyMode(t *testing.T) {
	ctx := context.Background()
	master, _ := GenerateKey()
	m, err := NewManager(nil, hex.EncodeToString(master))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	key, keyID, err := m.MintKey(ctx, "artifact-1")
	if err != nil {
		t.Fatalf("MintKey failed: %v", err)
	}
	if !bytes.Equal(key, master) {
		t.Error("master-key mode should mint the master key")
	}

	got, err := m.RetrieveKey(ctx, "artifact-1", keyID)
	if err != nil {
		t.Fatalf("RetrieveKey failed: %v", err)
	}
	if !bytes.Equal(got, master) {
		t.Error("master-key mode should resolve every artifact to the master key")
	}
}

func TestNewManagerRejectsBadMasterKey(t *testing.T) {
	if _, err := NewManager(nil, "not-hex"); err == nil {
		t.Fatal("non-hex master key should be rejected")
	}
	if _, err := NewManager(nil, "abcd"); err == nil {
		t.Fatal("short master key should be rejected")
	}
}
