package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "test.db"), false)
	require.NoError(t, err)
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return newTestStore(t)
	})
}

func TestCheckpoint(t *testing.T) {
	s := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.CreateAppointment(context.Background(), 1, time.Now())
	require.NoError(t, err)
	assert.NoError(t, s.Checkpoint(context.Background()))
}

func TestColumnNaming(t *testing.T) {
	s := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })

	for _, col := range []string{"userId", "operatorId", "scheduledAt", "paymentId"} {
		assert.True(t, s.db.Migrator().HasColumn(&appointmentRow{}, col), col)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.db")
	ctx := context.Background()

	s, err := Open(path, false)
	require.NoError(t, err)
	id, err := s.CreateUser(ctx, "alice", "pw", "user")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	u, err := s.FindUser(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, u.Id)
}
