package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
)

const appointmentColumns = `id, user_id, operator_id, status, scheduled_at, payment_id, amount`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a          model.Appointment
		status     string
		operatorId sql.NullInt64
		paymentId  sql.NullString
	)
	err := row.Scan(&a.Id, &a.UserId, &operatorId, &status, &a.ScheduledAt, &paymentId, &a.Amount)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.AppointmentStatus(status)
	a.ScheduledAt = a.ScheduledAt.UTC()
	if operatorId.Valid {
		v := operatorId.Int64
		a.OperatorId = &v
	}
	if paymentId.Valid {
		v := paymentId.String
		a.PaymentId = &v
	}
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, userId int64, scheduledAt time.Time) (int64, error) {
	query := `INSERT INTO appointments (user_id, status, scheduled_at, amount)
			  VALUES ($1, $2, $3, $4) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		userId, string(model.StatusPendingPayment), scheduledAt.UTC(), model.DefaultAmount,
	).Scan(&id)
	if err != nil {
		return 0, database.Unavailable("create appointment", err)
	}
	return id, nil
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, database.Unavailable("get appointment", err)
	}
	return &a, nil
}

func (s *Store) UpdateAppointmentPayment(ctx context.Context, id int64, paymentId string) error {
	query := `UPDATE appointments SET status = $1, payment_id = $2
			  WHERE id = $3 AND status = $4`

	res, err := s.db.ExecContext(ctx, query,
		string(model.StatusPaid), paymentId, id, string(model.StatusPendingPayment),
	)
	if err != nil {
		return database.Unavailable("update appointment payment", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return database.Unavailable("update appointment payment", err)
	}
	if affected == 1 {
		return nil
	}

	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	return database.ClassifyPaymentConflict(current, paymentId)
}

func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, database.Unavailable("list appointments", err)
	}
	defer rows.Close()

	out := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, database.Unavailable("list appointments", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("list appointments", err)
	}
	return out, nil
}
