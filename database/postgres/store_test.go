package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
)

var appointmentCols = []string{"id", "user_id", "operator_id", "status", "scheduled_at", "payment_id", "amount"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestStore_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantId  int64
		wantErr error
	}{
		{
			name: "successful creation",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "pw", "user").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
			},
			wantId: 1,
		},
		{
			name: "duplicate username",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "pw", "user").
					WillReturnError(&pgconn.PgError{Code: uniqueViolation})
			},
			wantErr: database.ErrDuplicateUsername,
		},
		{
			name: "connection failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice", "pw", "user").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: database.ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)

			id, err := s.CreateUser(context.Background(), "alice", "pw", model.RoleUser)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantId, id)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_FindUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, username, password, role FROM users WHERE username`).
		WithArgs("alice", "pw").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role"}).
			AddRow(int64(3), "alice", "pw", "operator"))
	mock.ExpectQuery(`SELECT id, username, password, role FROM users WHERE username`).
		WithArgs("alice", "wrong").
		WillReturnError(sql.ErrNoRows)

	u, err := s.FindUser(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.Id)
	assert.Equal(t, model.RoleOperator, u.Role)

	_, err = s.FindUser(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetAppointment(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM appointments WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(appointmentCols).
			AddRow(int64(7), int64(1), nil, "paid", at, "pay_1", int64(5000)))
	mock.ExpectQuery(`FROM appointments WHERE id`).
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)

	a, err := s.GetAppointment(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, a.Status)
	require.NotNil(t, a.PaymentId)
	assert.Equal(t, "pay_1", *a.PaymentId)
	assert.Nil(t, a.OperatorId)
	assert.True(t, a.Consistent())
	assert.Equal(t, at, a.ScheduledAt)

	_, err = s.GetAppointment(context.Background(), 8)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateAppointmentPayment(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "fresh transition",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE appointments SET status`).
					WithArgs("paid", "pay_1", int64(1), "pending_payment").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "same claim retry",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE appointments SET status`).
					WithArgs("paid", "pay_1", int64(1), "pending_payment").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM appointments WHERE id`).
					WithArgs(int64(1)).
					WillReturnRows(sqlmock.NewRows(appointmentCols).
						AddRow(int64(1), int64(1), nil, "paid", at, "pay_1", int64(5000)))
			},
		},
		{
			name: "different claim",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE appointments SET status`).
					WithArgs("paid", "pay_1", int64(1), "pending_payment").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM appointments WHERE id`).
					WithArgs(int64(1)).
					WillReturnRows(sqlmock.NewRows(appointmentCols).
						AddRow(int64(1), int64(1), nil, "paid", at, "pay_other", int64(5000)))
			},
			wantErr: database.ErrAlreadyPaid,
		},
		{
			name: "missing appointment",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE appointments SET status`).
					WithArgs("paid", "pay_1", int64(1), "pending_payment").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM appointments WHERE id`).
					WithArgs(int64(1)).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: database.ErrNotFound,
		},
		{
			name: "connection failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE appointments SET status`).
					WillReturnError(errors.New("broken pipe"))
			},
			wantErr: database.ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)

			err := s.UpdateAppointmentPayment(context.Background(), 1, "pay_1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ListAppointments(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM appointments ORDER BY id DESC`).
		WillReturnRows(sqlmock.NewRows(appointmentCols).
			AddRow(int64(2), int64(1), int64(9), "pending_payment", at, nil, int64(5000)).
			AddRow(int64(1), int64(1), nil, "paid", at, "pay_1", int64(5000)))

	list, err := s.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Id)
	require.NotNil(t, list[0].OperatorId)
	assert.Equal(t, int64(9), *list[0].OperatorId)
	assert.Nil(t, list[0].PaymentId)
	assert.Equal(t, int64(1), list[1].Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListAppointments_Empty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM appointments ORDER BY id DESC`).
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	list, err := s.ListAppointments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
