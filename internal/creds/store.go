// ABOUTME: Credential store owning the persisted WhatsApp pairing credentials.
// ABOUTME: Serializes credential persists and wipes so a wipe can never be undone by a late persist.

package creds

import (
	"context"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// deviceContainer is the slice of sqlstore.Container the store needs.
type deviceContainer interface {
	NewDevice() *store.Device
}

// Store owns the single credential set persisted for this gateway identity.
// All mutation paths (persist on rotation, wipe on unlink/logout) go through
// the same mutex: the two must never interleave, and once Wipe has run a
// late Save must not resurrect the deleted credentials.
type Store struct {
	mu        sync.Mutex
	container deviceContainer
	device    *store.Device
	close     func() error
}

// Open opens (creating and migrating if needed) the sqlite credential store
// at path and loads the device for this identity. A store with no device
// yet yields an unpaired device, which forces the QR pairing flow.
func Open(ctx context.Context, path string, log waLog.Logger) (*Store, error) {
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path), log)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("loading device credentials: %w", err)
	}

	return &Store{
		container: container,
		device:    device,
		close:     container.Close,
	}, nil
}

// Device returns the device handle backing the network client.
func (s *Store) Device() *store.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Paired reports whether a pairing credential set currently exists.
func (s *Store) Paired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.ID != nil
}

// Save persists the current credentials. Called on credential-rotation
// events from the network; a missed persist would desynchronize local state
// from the network's view. Saving an unpaired device is a no-op, so a
// rotation racing an unlink cannot write back wiped credentials.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device.ID == nil {
		return nil
	}
	if err := s.device.Save(ctx); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}
	return nil
}

// Wipe deletes the persisted credentials and replaces the in-memory device
// with a fresh unpaired one. Wiping when no credentials exist is a no-op
// success, so unlinking twice in a row is safe.
func (s *Store) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device.ID == nil {
		return nil
	}
	if err := s.device.Delete(ctx); err != nil {
		return fmt.Errorf("wiping credentials: %w", err)
	}
	s.device = s.container.NewDevice()
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
