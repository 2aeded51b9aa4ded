// ABOUTME: Tests for the credential store's persist/wipe serialization.
// ABOUTME: Validates no-op wipes, idempotent unlink, and that a wipe wins over a late persist.

package creds

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

// fakeContainer implements both store.DeviceContainer (for device
// Save/Delete) and the store's container slice (NewDevice).
type fakeContainer struct {
	mu        sync.Mutex
	puts      int
	deletes   int
	deleteErr error
}

func (f *fakeContainer) PutDevice(ctx context.Context, d *store.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return nil
}

func (f *fakeContainer) DeleteDevice(ctx context.Context, d *store.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	return nil
}

func (f *fakeContainer) NewDevice() *store.Device {
	return &store.Device{Container: f}
}

func newTestStore(paired bool) (*Store, *fakeContainer) {
	fc := &fakeContainer{}
	device := &store.Device{Container: fc}
	if paired {
		jid := types.NewJID("15550001111", types.DefaultUserServer)
		device.ID = &jid
	}
	return &Store{container: fc, device: device}, fc
}

func TestStore_Paired(t *testing.T) {
	s, _ := newTestStore(true)
	assert.True(t, s.Paired())

	s, _ = newTestStore(false)
	assert.False(t, s.Paired())
}

func TestStore_Save_PersistsPairedDevice(t *testing.T) {
	s, fc := newTestStore(true)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 1, fc.puts)
}

func TestStore_Save_UnpairedIsNoop(t *testing.T) {
	s, fc := newTestStore(false)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 0, fc.puts)
}

func TestStore_Wipe_DeletesCredentials(t *testing.T) {
	s, fc := newTestStore(true)

	require.NoError(t, s.Wipe(context.Background()))
	assert.Equal(t, 1, fc.deletes)
	assert.False(t, s.Paired())
}

func TestStore_Wipe_AbsentIsNoop(t *testing.T) {
	s, fc := newTestStore(false)

	require.NoError(t, s.Wipe(context.Background()))
	assert.Equal(t, 0, fc.deletes)
}

func TestStore_Wipe_Twice(t *testing.T) {
	s, fc := newTestStore(true)

	require.NoError(t, s.Wipe(context.Background()))
	require.NoError(t, s.Wipe(context.Background()))
	assert.Equal(t, 1, fc.deletes)
	assert.False(t, s.Paired())
}

func TestStore_Wipe_PropagatesError(t *testing.T) {
	s, fc := newTestStore(true)
	fc.deleteErr = errors.New("disk full")

	err := s.Wipe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiping credentials")
	// Device handle is only replaced after a successful delete.
	assert.True(t, s.Paired())
}

func TestStore_SaveAfterWipe_DoesNotResurrect(t *testing.T) {
	s, fc := newTestStore(true)

	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Wipe(context.Background()))
	require.NoError(t, s.Save(context.Background()))

	assert.Equal(t, 1, fc.puts, "save after wipe must not write credentials back")
	assert.False(t, s.Paired())
}
