// Package server wires the stores, handlers, and background workers into a
// single HTTP surface.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pingvi/pingvi/internal/auth"
	"github.com/pingvi/pingvi/internal/backup"
	"github.com/pingvi/pingvi/internal/config"
	"github.com/pingvi/pingvi/internal/handler"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/middleware"
	"github.com/pingvi/pingvi/internal/notify"
	"github.com/pingvi/pingvi/internal/store"
	ws "github.com/pingvi/pingvi/internal/websocket"
)

type Server struct {
	db            *sql.DB
	cfg           config.Config
	hub           *ws.Hub
	authH         *handler.AuthHandler
	accountH      *handler.AccountHandler
	dependentH    *handler.DependentHandler
	taskH         *handler.TaskHandler
	ledgerH       *handler.LedgerHandler
	sessions      *auth.SessionManager
	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	dispatcher    *notify.Dispatcher
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logging.Component(logger, "websocket"))

	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	taskStore := store.NewTaskStore(db, accountStore)
	ledgerStore := store.NewLedgerStore(db)
	backupStore := store.NewBackupStore(db)

	sessions := auth.NewSessionManager(accountStore, sessionStore)
	sessions.SetTTL(cfg.SessionTTL)

	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		publisher = notify.NewAMQPPublisher(cfg.AMQPURL)
	} else {
		publisher = notify.NewLogPublisher(logging.Component(logger, "notify"))
	}
	dispatcher := notify.NewDispatcher(publisher, logging.Component(logger, "notify"))

	backupMgr := backup.NewManager(backup.Config{
		Dir:        cfg.BackupDir,
		Passphrase: cfg.BackupPass,
		Interval:   cfg.BackupInterval,
		Keep:       cfg.BackupKeep,
	}, db, backupStore, logging.Component(logger, "backup"))

	return &Server{
		db:            db,
		cfg:           cfg,
		hub:           hub,
		authH:         handler.NewAuthHandler(sessions, logger),
		accountH:      handler.NewAccountHandler(accountStore, hub, dispatcher, logger),
		dependentH:    handler.NewDependentHandler(accountStore, hub, dispatcher, logger),
		taskH:         handler.NewTaskHandler(taskStore, ledgerStore, hub, dispatcher, logger),
		ledgerH:       handler.NewLedgerHandler(ledgerStore, accountStore, logger),
		sessions:      sessions,
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		dispatcher:    dispatcher,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// Start launches the background workers: the event dispatcher and, when
// configured, the periodic backup loop.
func (s *Server) Start(ctx context.Context) {
	s.dispatcher.Start(ctx)
	s.backupManager.Start(ctx)
}

// Dispatcher returns the event dispatcher, for shutdown sequencing.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /auth/refresh", s.authH.Refresh)
	outerMux.HandleFunc("POST /accounts/register", s.rateLimitedHandler(s.accountH.Register))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(logging.Component(s.logger, "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /auth/validate", s.authH.Validate)

	mux.HandleFunc("GET /accounts/me", s.accountH.Me)
	mux.HandleFunc("PATCH /accounts/me", s.accountH.UpdateMe)

	mux.HandleFunc("POST /dependents", s.dependentH.Create)
	mux.HandleFunc("GET /dependents", s.dependentH.List)
	mux.HandleFunc("GET /dependents/{id}", s.dependentH.Get)
	mux.HandleFunc("DELETE /dependents/{id}", s.dependentH.Deactivate)

	mux.HandleFunc("POST /tasks", s.taskH.Create)
	mux.HandleFunc("GET /tasks", s.taskH.List)
	mux.HandleFunc("GET /tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /tasks/{id}", s.taskH.Delete)

	mux.HandleFunc("GET /ledger", s.ledgerH.History)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.cfg.LoginRateLimit, s.cfg.LoginRateWin)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
