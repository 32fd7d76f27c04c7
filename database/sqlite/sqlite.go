// Package sqlite is the embedded file backend of the storage port, built on
// gorm with the sqlite driver. Columns use the single-word naming of the
// original schema (userId, paymentId, scheduledAt).
package sqlite

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ database.Store = (*Store)(nil)
var _ database.Checkpointer = (*Store)(nil)
var _ database.Migrator = (*Store)(nil)

type userRow struct {
	Id       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Username string `gorm:"column:username;uniqueIndex;not null"`
	Password string `gorm:"column:password"`
	Role     string `gorm:"column:role;not null;default:user"`
}

func (userRow) TableName() string { return "users" }

type appointmentRow struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserId      int64     `gorm:"column:userId;index"`
	OperatorId  *int64    `gorm:"column:operatorId"`
	Status      string    `gorm:"column:status;not null;default:pending_payment"`
	ScheduledAt time.Time `gorm:"column:scheduledAt"`
	PaymentId   *string   `gorm:"column:paymentId"`
	Amount      int64     `gorm:"column:amount;not null;default:5000"`
}

func (appointmentRow) TableName() string { return "appointments" }

func (r *appointmentRow) toModel() model.Appointment {
	return model.Appointment{
		Id:          r.Id,
		UserId:      r.UserId,
		OperatorId:  r.OperatorId,
		Status:      model.AppointmentStatus(r.Status),
		ScheduledAt: r.ScheduledAt.UTC(),
		PaymentId:   r.PaymentId,
		Amount:      r.Amount,
	}
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		Id:       r.Id,
		Username: r.Username,
		Password: r.Password,
		Role:     model.Role(r.Role),
	}
}

type Store struct {
	db *gorm.DB
}

// Open creates the database file if needed, applies the connection pragmas
// and migrates the schema.
func Open(dbPath string, debug bool) (*Store, error) {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return nil, err
	}

	var gormLogger logger.Interface

	if debug {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return nil, database.Unavailable("open sqlite", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	_, err = sqlDB.Exec("PRAGMA cache_size = -64000;")
	if err != nil {
		return nil, err
	}
	_, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		&userRow{},
		&appointmentRow{},
	}
	for _, m := range models {
		if err := s.db.WithContext(ctx).AutoMigrate(m); err != nil {
			return database.Unavailable("migrate sqlite", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string, role model.Role) (int64, error) {
	row := &userRow{Username: username, Password: password, Role: string(role)}
	err := s.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, database.ErrDuplicateUsername
	}
	if err != nil {
		return 0, database.Unavailable("create user", err)
	}
	return row.Id, nil
}

func (s *Store) FindUser(ctx context.Context, username, password string) (*model.User, error) {
	row := &userRow{}
	err := s.db.WithContext(ctx).
		Where("username = ? AND password = ?", username, password).
		First(row).
		Error
	if err != nil {
		return nil, translate("find user", err)
	}
	return row.toModel(), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := &userRow{}
	err := s.db.WithContext(ctx).Where("id = ?", id).First(row).Error
	if err != nil {
		return nil, translate("get user", err)
	}
	return row.toModel(), nil
}

func (s *Store) CreateAppointment(ctx context.Context, userId int64, scheduledAt time.Time) (int64, error) {
	row := &appointmentRow{
		UserId:      userId,
		Status:      string(model.StatusPendingPayment),
		ScheduledAt: scheduledAt.UTC(),
		Amount:      model.DefaultAmount,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, database.Unavailable("create appointment", err)
	}
	return row.Id, nil
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	row := &appointmentRow{}
	err := s.db.WithContext(ctx).Where("id = ?", id).First(row).Error
	if err != nil {
		return nil, translate("get appointment", err)
	}
	a := row.toModel()
	return &a, nil
}

func (s *Store) UpdateAppointmentPayment(ctx context.Context, id int64, paymentId string) error {
	res := s.db.WithContext(ctx).
		Model(&appointmentRow{}).
		Where("id = ? AND status = ?", id, string(model.StatusPendingPayment)).
		Updates(map[string]any{
			"status":    string(model.StatusPaid),
			"paymentId": paymentId,
		})
	if res.Error != nil {
		return database.Unavailable("update appointment payment", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	return database.ClassifyPaymentConflict(current, paymentId)
}

func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	var rows []appointmentRow
	err := s.db.WithContext(ctx).Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, database.Unavailable("list appointments", err)
	}
	out := make([]model.Appointment, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return database.Unavailable("ping sqlite", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return database.Unavailable("ping sqlite", err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	err := s.db.WithContext(ctx).Exec("PRAGMA wal_checkpoint;").Error
	if err != nil {
		return database.Unavailable("checkpoint", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_ = s.Checkpoint(context.Background())
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.ErrNotFound
	}
	return database.Unavailable(op, err)
}
