// Package storetest is a conformance suite every database.Store backend runs
// against, so that the sqlite, postgres and redis stores behave identically.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
)

// Factory returns an empty store for one subtest. The suite closes it.
type Factory func(t *testing.T) database.Store

var seq atomic.Int64

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), seq.Add(1))
}

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s database.Store)
	}{
		{"CreateAndFindUser", testCreateAndFindUser},
		{"DuplicateUsername", testDuplicateUsername},
		{"GetUserNotFound", testGetUserNotFound},
		{"CreateAppointmentDefaults", testCreateAppointmentDefaults},
		{"GetAppointmentNotFound", testGetAppointmentNotFound},
		{"ListNewestFirst", testListNewestFirst},
		{"PaymentTransition", testPaymentTransition},
		{"PaymentNotFound", testPaymentNotFound},
		{"ConcurrentConfirm", testConcurrentConfirm},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func createUser(t *testing.T, s database.Store) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), uniqueName("user"), "secret", model.RoleUser)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func testCreateAndFindUser(t *testing.T, s database.Store) {
	ctx := context.Background()
	name := uniqueName("alice")

	id, err := s.CreateUser(ctx, name, "pw", model.RoleOperator)
	require.NoError(t, err)

	u, err := s.FindUser(ctx, name, "pw")
	require.NoError(t, err)
	assert.Equal(t, id, u.Id)
	assert.Equal(t, name, u.Username)
	assert.Equal(t, model.RoleOperator, u.Role)

	_, err = s.FindUser(ctx, name, "wrong")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = s.FindUser(ctx, uniqueName("nobody"), "pw")
	assert.ErrorIs(t, err, database.ErrNotFound)

	byId, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, name, byId.Username)
}

func testDuplicateUsername(t *testing.T, s database.Store) {
	ctx := context.Background()
	name := uniqueName("bob")

	first, err := s.CreateUser(ctx, name, "one", model.RoleUser)
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, name, "two", model.RoleOperator)
	assert.ErrorIs(t, err, database.ErrDuplicateUsername)

	u, err := s.FindUser(ctx, name, "one")
	require.NoError(t, err)
	assert.Equal(t, first, u.Id)
	assert.Equal(t, model.RoleUser, u.Role)

	second, err := s.CreateUser(ctx, uniqueName("carol"), "pw", model.RoleUser)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func testGetUserNotFound(t *testing.T, s database.Store) {
	_, err := s.GetUser(context.Background(), 987654321)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testCreateAppointmentDefaults(t *testing.T, s database.Store) {
	ctx := context.Background()
	userId := createUser(t, s)
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	id, err := s.CreateAppointment(ctx, userId, at)
	require.NoError(t, err)
	require.Positive(t, id)

	a, err := s.GetAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, a.Id)
	assert.Equal(t, userId, a.UserId)
	assert.Equal(t, model.StatusPendingPayment, a.Status)
	assert.Nil(t, a.PaymentId)
	assert.Nil(t, a.OperatorId)
	assert.Equal(t, model.DefaultAmount, a.Amount)
	assert.True(t, at.Equal(a.ScheduledAt), "scheduledAt %s != %s", a.ScheduledAt, at)
	assert.True(t, a.Consistent())
}

func testGetAppointmentNotFound(t *testing.T, s database.Store) {
	_, err := s.GetAppointment(context.Background(), 987654321)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testListNewestFirst(t *testing.T, s database.Store) {
	ctx := context.Background()
	userId := createUser(t, s)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// scheduled times deliberately out of order; listing follows ids only
	offsets := []int{5, 1, 4, 2, 3}
	created := make([]int64, 0, len(offsets))
	for _, off := range offsets {
		id, err := s.CreateAppointment(ctx, userId, base.Add(time.Duration(off)*time.Hour))
		require.NoError(t, err)
		created = append(created, id)
	}

	list, err := s.ListAppointments(ctx)
	require.NoError(t, err)

	mine := make([]int64, 0, len(created))
	for _, a := range list {
		if a.UserId == userId {
			mine = append(mine, a.Id)
		}
	}
	require.Len(t, mine, len(created))
	for i := range created {
		assert.Equal(t, created[len(created)-1-i], mine[i])
	}
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].Id, list[i].Id)
	}
}

func testPaymentTransition(t *testing.T, s database.Store) {
	ctx := context.Background()
	userId := createUser(t, s)
	id, err := s.CreateAppointment(ctx, userId, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.UpdateAppointmentPayment(ctx, id, "pay_1"))

	a, err := s.GetAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, a.Status)
	require.NotNil(t, a.PaymentId)
	assert.Equal(t, "pay_1", *a.PaymentId)
	assert.True(t, a.Consistent())

	// same claim is an idempotent retry
	require.NoError(t, s.UpdateAppointmentPayment(ctx, id, "pay_1"))

	err = s.UpdateAppointmentPayment(ctx, id, "pay_2")
	assert.ErrorIs(t, err, database.ErrAlreadyPaid)

	a, err = s.GetAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, a.Status)
	assert.Equal(t, "pay_1", *a.PaymentId)
}

func testPaymentNotFound(t *testing.T, s database.Store) {
	err := s.UpdateAppointmentPayment(context.Background(), 987654321, "pay_1")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testConcurrentConfirm(t *testing.T, s database.Store) {
	ctx := context.Background()
	userId := createUser(t, s)
	id, err := s.CreateAppointment(ctx, userId, time.Now())
	require.NoError(t, err)

	const writers = 8
	var (
		wg       sync.WaitGroup
		done     = make(chan struct{})
		torn     atomic.Int64
		listErrs atomic.Int64
		errs     = make(chan error, writers)
	)

	listerDone := make(chan struct{})
	go func() {
		defer close(listerDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			list, err := s.ListAppointments(ctx)
			if err != nil {
				listErrs.Add(1)
				continue
			}
			for i := range list {
				if !list[i].Consistent() {
					torn.Add(1)
				}
			}
		}
	}()

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.UpdateAppointmentPayment(ctx, id, "pay_same")
		}()
	}
	wg.Wait()
	close(done)
	<-listerDone
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, torn.Load(), "lister observed status and payment id out of sync")
	assert.Zero(t, listErrs.Load())

	a, err := s.GetAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, a.Status)
	assert.Equal(t, "pay_same", *a.PaymentId)
}

func testPing(t *testing.T, s database.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
