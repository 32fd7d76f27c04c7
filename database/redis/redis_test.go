package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/database/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:"), mr
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestFieldNaming(t *testing.T) {
	s, mr := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	userId, err := s.CreateUser(ctx, "alice", "pw", model.RoleUser)
	require.NoError(t, err)
	id, err := s.CreateAppointment(ctx, userId, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, s.UpdateAppointmentPayment(ctx, id, "pay_1"))

	key := s.appointmentKey(id)
	assert.Equal(t, "test:appointment:1", key)
	assert.Equal(t, "1", mr.HGet(key, "user_id"))
	assert.Equal(t, "pay_1", mr.HGet(key, "payment_id"))
	assert.Equal(t, "paid", mr.HGet(key, "status"))
	assert.Equal(t, "2025-01-01T10:00:00Z", mr.HGet(key, "scheduled_at"))
	assert.Equal(t, "5000", mr.HGet(key, "amount"))

	got, err := mr.Get("test:username:alice")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	t.Cleanup(func() { _ = s.Close() })
	mr.Close()

	_, err := s.ListAppointments(context.Background())
	assert.ErrorIs(t, err, database.ErrStorageUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), database.ErrStorageUnavailable)
}

func TestOpenEmbedded(t *testing.T) {
	s, err := Open(context.Background(), config.RedisConfig{Addr: EmbeddedAddr, Prefix: "csc:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "csc:", s.Prefix())
	assert.NotNil(t, s.Client())
}
