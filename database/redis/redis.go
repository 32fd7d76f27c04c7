// Package redis is the managed-service backend of the storage port. Records
// live in Redis hashes with underscore field names; every multi-key write is
// a Lua script so it applies atomically.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
)

// EmbeddedAddr selects an in-process server instead of a remote one.
// Data does not survive a restart.
const EmbeddedAddr = "embedded"

var _ database.Store = (*Store)(nil)

type Store struct {
	client    *redis.Client
	miniRedis *miniredis.Miniredis
	prefix    string
}

// New wraps an existing client. Keys are namespaced with prefix.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects to the configured server, or starts an embedded one when
// the address is EmbeddedAddr.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if cfg.Addr == EmbeddedAddr {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		logger.Warning("Embedded Redis started on", mr.Addr(), "- data is not durable")
		s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg.Prefix)
		s.miniRedis = mr
		return s, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	s := New(redis.NewClient(opts), cfg.Prefix)
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	logger.Info("Connected to Redis at", cfg.Addr)
	return s, nil
}

// Client exposes the underlying client, e.g. for the session store.
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *Store) userKey(id int64) string {
	return s.key("user", strconv.FormatInt(id, 10))
}

func (s *Store) appointmentKey(id int64) string {
	return s.key("appointment", strconv.FormatInt(id, 10))
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return database.Unavailable("ping redis", errors.New("redis client not initialized"))
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return database.Unavailable("ping redis", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			return err
		}
	}
	if s.miniRedis != nil {
		s.miniRedis.Close()
	}
	return nil
}

// createUserScript reserves the username and writes the user hash in one step.
// KEYS: username index, user sequence. ARGV: username, password, role, user key prefix.
var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -1
end
local id = redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[1], id)
redis.call('HSET', ARGV[4] .. id, 'id', id, 'username', ARGV[1], 'password', ARGV[2], 'role', ARGV[3])
return id
`)

func (s *Store) CreateUser(ctx context.Context, username, password string, role model.Role) (int64, error) {
	keys := []string{s.key("username", username), s.key("seq", "user")}
	id, err := createUserScript.Run(ctx, s.client, keys,
		username, password, string(role), s.key("user", ""),
	).Int64()
	if err != nil {
		return 0, database.Unavailable("create user", err)
	}
	if id < 0 {
		return 0, database.ErrDuplicateUsername
	}
	return id, nil
}

func (s *Store) FindUser(ctx context.Context, username, password string) (*model.User, error) {
	id, err := s.client.Get(ctx, s.key("username", username)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, database.Unavailable("find user", err)
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Password != password {
		return nil, database.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, database.Unavailable("get user", err)
	}
	if len(fields) == 0 {
		return nil, database.ErrNotFound
	}
	return &model.User{
		Id:       id,
		Username: fields["username"],
		Password: fields["password"],
		Role:     model.Role(fields["role"]),
	}, nil
}

// createAppointmentScript allocates an id, writes the hash and indexes it.
// KEYS: appointment sequence, appointment index.
// ARGV: appointment key prefix, user_id, status, scheduled_at, amount.
var createAppointmentScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[1])
redis.call('HSET', ARGV[1] .. id, 'id', id, 'user_id', ARGV[2], 'status', ARGV[3], 'scheduled_at', ARGV[4], 'amount', ARGV[5])
redis.call('ZADD', KEYS[2], id, id)
return id
`)

func (s *Store) CreateAppointment(ctx context.Context, userId int64, scheduledAt time.Time) (int64, error) {
	keys := []string{s.key("seq", "appointment"), s.key("appointments")}
	id, err := createAppointmentScript.Run(ctx, s.client, keys,
		s.key("appointment", ""),
		userId,
		string(model.StatusPendingPayment),
		scheduledAt.UTC().Format(time.RFC3339Nano),
		model.DefaultAmount,
	).Int64()
	if err != nil {
		return 0, database.Unavailable("create appointment", err)
	}
	return id, nil
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	fields, err := s.client.HGetAll(ctx, s.appointmentKey(id)).Result()
	if err != nil {
		return nil, database.Unavailable("get appointment", err)
	}
	if len(fields) == 0 {
		return nil, database.ErrNotFound
	}
	a, err := decodeAppointment(fields)
	if err != nil {
		return nil, database.Unavailable("get appointment", err)
	}
	return &a, nil
}

const (
	payMissing int64 = iota
	payApplied
	paySameClaim
	payOtherClaim
)

// payScript performs the pending_payment -> paid transition.
// KEYS: appointment hash. ARGV: payment id.
var payScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('HGET', KEYS[1], 'status') == 'pending_payment' then
	redis.call('HSET', KEYS[1], 'status', 'paid', 'payment_id', ARGV[1])
	return 1
end
if redis.call('HGET', KEYS[1], 'payment_id') == ARGV[1] then
	return 2
end
return 3
`)

func (s *Store) UpdateAppointmentPayment(ctx context.Context, id int64, paymentId string) error {
	res, err := payScript.Run(ctx, s.client, []string{s.appointmentKey(id)}, paymentId).Int64()
	if err != nil {
		return database.Unavailable("update appointment payment", err)
	}
	switch res {
	case payApplied, paySameClaim:
		return nil
	case payMissing:
		return database.ErrNotFound
	default:
		return database.ErrAlreadyPaid
	}
}

func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("appointments"), 0, -1).Result()
	if err != nil {
		return nil, database.Unavailable("list appointments", err)
	}

	out := make([]model.Appointment, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key("appointment", id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, database.Unavailable("list appointments", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		a, err := decodeAppointment(fields)
		if err != nil {
			return nil, database.Unavailable("list appointments", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAppointment(fields map[string]string) (model.Appointment, error) {
	var (
		a   model.Appointment
		err error
	)
	if a.Id, err = strconv.ParseInt(fields["id"], 10, 64); err != nil {
		return a, fmt.Errorf("bad id field: %w", err)
	}
	if a.UserId, err = strconv.ParseInt(fields["user_id"], 10, 64); err != nil {
		return a, fmt.Errorf("bad user_id field: %w", err)
	}
	if a.Amount, err = strconv.ParseInt(fields["amount"], 10, 64); err != nil {
		return a, fmt.Errorf("bad amount field: %w", err)
	}
	if a.ScheduledAt, err = time.Parse(time.RFC3339Nano, fields["scheduled_at"]); err != nil {
		return a, fmt.Errorf("bad scheduled_at field: %w", err)
	}
	a.Status = model.AppointmentStatus(fields["status"])
	if v, ok := fields["operator_id"]; ok && v != "" {
		op, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return a, fmt.Errorf("bad operator_id field: %w", err)
		}
		a.OperatorId = &op
	}
	if v, ok := fields["payment_id"]; ok && v != "" {
		a.PaymentId = &v
	}
	return a, nil
}
