// Package memvault is an in-memory Vault collaborator, used by the test
// suite and the demo command. It stands in for the real vault's
// encryption, sync, and server-persistence boundary: "encryption" here is
// a JSON snapshot, not a security mechanism, since vault cryptography is
// explicitly out of this module's scope.
package memvault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-ctap/fido2vault/pkg/collab"
	"github.com/go-ctap/fido2vault/pkg/store"
)

type encryptedEntry struct {
	id   string
	blob []byte
}

func (e encryptedEntry) ID() string { return e.id }

// Vault is a mutex-serialised in-memory implementation of collab.Vault.
// Concurrent operations on different entries are independent; operations
// on the same entry id are serialised by mu, giving last-writer-wins
// semantics for the vault collaborator.
type Vault struct {
	mu      sync.Mutex
	entries map[string]*store.Entry
}

// New seeds a Vault with the given entries, keyed by their ID.
func New(entries ...*store.Entry) *Vault {
	v := &Vault{entries: make(map[string]*store.Entry, len(entries))}
	for _, e := range entries {
		v.entries[e.ID] = e
	}
	return v
}

func (v *Vault) GetEncrypted(_ context.Context, id string) (collab.EncryptedEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[id]
	if !ok {
		return nil, fmt.Errorf("memvault: no entry %q", id)
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return encryptedEntry{id: id, blob: blob}, nil
}

func (v *Vault) Decrypt(_ context.Context, entry collab.EncryptedEntry) (*store.Entry, error) {
	e, ok := entry.(encryptedEntry)
	if !ok {
		return nil, fmt.Errorf("memvault: foreign encrypted entry type")
	}

	var decoded store.Entry
	if err := json.Unmarshal(e.blob, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (v *Vault) Encrypt(_ context.Context, entry *store.Entry) (collab.EncryptedEntry, error) {
	blob, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return encryptedEntry{id: entry.ID, blob: blob}, nil
}

func (v *Vault) SaveWithServer(_ context.Context, entry collab.EncryptedEntry) error {
	e, ok := entry.(encryptedEntry)
	if !ok {
		return fmt.Errorf("memvault: foreign encrypted entry type")
	}

	var decoded store.Entry
	if err := json.Unmarshal(e.blob, &decoded); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[decoded.ID] = &decoded
	return nil
}

func (v *Vault) GetAllDecrypted(_ context.Context) ([]*store.Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]*store.Entry, 0, len(v.entries))
	for _, e := range v.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (v *Vault) UpdateLastUsedDate(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[id]
	if !ok {
		return fmt.Errorf("memvault: no entry %q", id)
	}
	now := time.Now()
	entry.LastUsedDate = &now
	return nil
}
