package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/cache"
	"admin-payments/internal/config"
	"admin-payments/internal/handler"
	"admin-payments/internal/repository"
	"admin-payments/internal/scheduler"
	"admin-payments/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router    *mux.Router
	server    *http.Server
	db        *sql.DB
	redis     *redis.Client
	txCache   *cache.TransactionCache
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
	port      string
}

// NewServer wires the database, gateway client, cache and scheduler.
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to database")

	gateway, err := acquiring.NewClient(cfg.Gateway(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Server{db: db, logger: logger}
	store := repository.NewStore(db, logger)

	var opts []service.Option
	if cfg.RedisAddr != "" {
		s.redis = cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := s.redis.Ping(pingCtx).Err(); err != nil {
			// The service works without the cache; reads go to the database.
			logger.WithError(err).Warn("Redis unavailable, transaction list cache disabled")
			s.redis.Close()
			s.redis = nil
		} else {
			s.txCache = cache.New(s.redis, cfg.CacheTTL, logger)
			opts = append(opts, service.WithCache(s.txCache))
			logger.WithField("addr", cfg.RedisAddr).Info("Transaction list cache enabled")
		}
	}

	payments := service.NewPaymentService(store.Transactions(), store.Audit(), store, gateway, service.Config{
		NotificationURL:  cfg.NotificationURL(),
		SuccessURL:       cfg.SuccessURL(),
		FailURL:          cfg.FailURL(),
		TerminalPassword: cfg.TerminalSecret,
	}, logger, opts...)

	if cfg.StatusSyncSchedule != "" {
		s.scheduler, err = scheduler.New(payments, cfg.StatusSyncSchedule, logger)
		if err != nil {
			s.close()
			return nil, err
		}
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	handler.NewPaymentHandler(payments, logger).RegisterRoutes(router)
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	s.router = router
	return s, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}

	cacheState := "disabled"
	if s.txCache != nil {
		cacheState = "up"
		if err := s.txCache.Ping(r.Context()); err != nil {
			cacheState = "down"
		}
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"cache":     cacheState,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

const requestIDHeader = "X-Request-ID"

// loggingMiddleware logs every request, tagging it with the caller's
// X-Request-ID or a fresh one that is echoed back.
func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.statusCode,
				"duration":   time.Since(start).String(),
				"user_agent": r.UserAgent(),
			}).Info("request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start listens on port ("0" picks a free one) and starts the scheduler.
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithField("port", s.port).Info("Starting server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Server failed")
		}
	}()

	if s.scheduler != nil {
		s.scheduler.Start()
	}
	return s.port, nil
}

// Stop shuts down the HTTP server first, then the scheduler and connections.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.scheduler != nil {
		if stopErr := s.scheduler.Stop(ctx); stopErr != nil {
			s.logger.WithError(stopErr).Warn("Status sync did not finish before shutdown")
		}
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Server) GetPort() string {
	return s.port
}

func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer builds and starts a server. Port "0" is the test setup and
// gets a silent logger.
func StartServer(cfg *config.Config) (*Server, string, error) {
	logger := logrus.New()
	if cfg.ServerPort == "0" {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(os.Stdout)
		logger.SetLevel(cfg.Level())
		if cfg.IsProduction() {
			logger.SetFormatter(&logrus.JSONFormatter{})
		}
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.close()
		return nil, "", err
	}

	return server, port, nil
}
