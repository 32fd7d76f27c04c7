// Package web provides the csc-portal web server: the JSON API, the call relay
// endpoint, static files and background job scheduling.
package web

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/mhsanaei/csc-portal/config"
	"github.com/mhsanaei/csc-portal/database"
	redisstore "github.com/mhsanaei/csc-portal/database/redis"
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/controller"
	"github.com/mhsanaei/csc-portal/web/job"
	"github.com/mhsanaei/csc-portal/web/middleware"
	"github.com/mhsanaei/csc-portal/web/network"
	"github.com/mhsanaei/csc-portal/web/notify"
	"github.com/mhsanaei/csc-portal/web/payment"
	"github.com/mhsanaei/csc-portal/web/relay"
	"github.com/mhsanaei/csc-portal/web/service"
	"github.com/mhsanaei/csc-portal/web/session"
)

const shutdownTimeout = 10 * time.Second

// Server represents the portal web server with its services and scheduled jobs.
type Server struct {
	cfg   *config.Config
	store database.Store

	httpServer *http.Server
	listener   net.Listener

	userService        *service.UserService
	appointmentService *service.AppointmentService
	paymentService     *service.PaymentService
	notifier           notify.Notifier

	hub     *relay.Hub
	limiter *middleware.RateLimiter

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires the services over store. The store stays owned by the caller.
func NewServer(cfg *config.Config, store database.Store) (*Server, error) {
	notifier, err := newNotifier(cfg.Telegram)
	if err != nil {
		return nil, err
	}
	verifier, orders := newPayment(cfg.Payment)

	appointments := service.NewAppointmentService(store)
	opts := relay.Options{
		RoomCapacity: cfg.Relay.RoomCapacity,
		NotifyLeave:  cfg.Relay.NotifyLeave,
		SendBuffer:   cfg.Relay.SendBuffer,
	}
	if cfg.Relay.RequirePaid {
		opts.Admission = appointments
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:                cfg,
		store:              store,
		userService:        service.NewUserService(store),
		appointmentService: appointments,
		paymentService:     service.NewPaymentService(store, verifier, orders, notifier),
		notifier:           notifier,
		hub:                relay.NewHub(opts),
		limiter:            middleware.NewRateLimiter(cfg.Rate.PerSecond, cfg.Rate.Burst),
		ctx:                ctx,
		cancel:             cancel,
	}, nil
}

func newNotifier(cfg config.TelegramConfig) (notify.Notifier, error) {
	if !cfg.Enabled() {
		return notify.Noop{}, nil
	}
	return notify.NewTelegram(cfg.Token, cfg.ChatID)
}

func newPayment(cfg config.PaymentConfig) (payment.Verifier, payment.OrderSource) {
	switch cfg.Verifier {
	case "hmac":
		return payment.NewHMACVerifier(cfg.HMACSecret), payment.MockOrders{Currency: cfg.Currency}
	case "yookassa":
		kassa := payment.NewYooKassa(cfg.YooKassaAccountID, cfg.YooKassaSecretKey, cfg.Currency, cfg.YooKassaReturnURL)
		return kassa, kassa
	default:
		return payment.AcceptAll{}, payment.MockOrders{Currency: cfg.Currency}
	}
}

func (s *Server) sessionStore() sessions.Store {
	secret := []byte(s.cfg.Web.SessionSecret)
	if rs, ok := s.store.(*redisstore.Store); ok {
		return session.NewRedisStore(rs.Client(), rs.Prefix(), secret)
	}
	return cookie.NewStore(secret)
}

// initRouter initializes Gin, registers middleware, controllers and the
// static file fallback.
func (s *Server) initRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	if domain := s.cfg.Web.Domain; domain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(domain))
	}
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/ws"}),
	))
	engine.Use(sessions.Sessions(session.CookieName, s.sessionStore()))

	api := engine.Group("/api")
	controller.NewAuthController(api.Group("", middleware.RateLimitMiddleware(s.limiter)), s.userService, s.cfg.Web.SessionMaxAge)
	controller.NewAppointmentController(api, s.appointmentService)
	controller.NewPaymentController(api, s.paymentService)
	controller.NewHealthController(api, s.store, s.hub)
	controller.NewRelayController(engine.Group(""), s.hub)

	files := http.FileServer(gin.Dir(s.cfg.Web.PublicDir, false))
	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})

	return engine
}

// startTask schedules background jobs.
func (s *Server) startTask() {
	if spec := s.cfg.Job.Checkpoint; spec != "" {
		if cp, ok := s.store.(database.Checkpointer); ok {
			if _, err := s.cron.AddJob(spec, job.NewCheckpointJob(cp)); err != nil {
				logger.Warning("Add CheckpointJob error", err)
			}
		}
	}

	if spec := s.cfg.Job.PendingReport; spec != "" && s.cfg.Telegram.Enabled() {
		logger.Infof("Tg pending report enabled, run at %s", spec)
		if _, err := s.cron.AddJob(spec, job.NewPendingReportJob(s.appointmentService, s.notifier)); err != nil {
			logger.Warning("Add PendingReportJob error", err)
		}
	}

	if _, err := s.cron.AddJob("@every 1m", job.NewRateLimitSweepJob(s.limiter)); err != nil {
		logger.Warning("Add RateLimitSweepJob error", err)
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.cron = cron.New(cron.WithLocation(time.UTC), cron.WithSeconds())
	s.cron.Start()

	engine := s.initRouter()

	listenAddr := net.JoinHostPort(s.cfg.Web.Listen, strconv.Itoa(s.cfg.Web.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	certFile, keyFile := s.cfg.Web.CertFile, s.cfg.Web.KeyFile
	if certFile != "" || keyFile != "" {
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
			cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			listener = network.NewHTTPSRedirectListener(listener)
			listener = tls.NewListener(listener, cfg)
			logger.Info("Web server running HTTPS on", listener.Addr())
		} else {
			logger.Error("Error loading certificates:", err)
			logger.Info("Web server running HTTP on", listener.Addr())
		}
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop shuts down the HTTP server, the relay and cron jobs.
func (s *Server) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.hub.Stop()

	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			err2 = err
		}
	}
	s.cancel()
	return errors.Join(err1, err2)
}

// Handler builds the router without listening. Used by tests.
func (s *Server) Handler() http.Handler { return s.initRouter() }
