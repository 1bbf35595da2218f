package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/minimart/apiserver/config"
	"github.com/minimart/apiserver/internal/db"
	"github.com/minimart/apiserver/internal/handlers"
	"github.com/minimart/apiserver/internal/metrics"
	"github.com/minimart/apiserver/internal/mq"
	"github.com/minimart/apiserver/internal/services"
	"github.com/minimart/apiserver/internal/storage"
	"github.com/minimart/apiserver/internal/store"
	"github.com/sirupsen/logrus"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
}

// New constructs a Server with its full dependency graph: database,
// repositories, services, optional image storage, and optional event
// broker.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	imageStorage, err := newStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	events, err := newMQ(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	productRepo := store.NewProductRepository(dbConn)
	cartRepo := store.NewCartRepository(dbConn)
	orderRepo := store.NewOrderRepository(dbConn)

	userService := services.NewUserService(userRepo)
	catalogService := services.NewCatalogService(productRepo, imageStorage)
	cartService := services.NewCartService(cartRepo, productRepo)

	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}
	orderService := services.NewOrderService(orderRepo, cartRepo, productRepo, publisher)

	authMiddleware := handlers.RequireAuth(jwtSecret)
	adminMiddleware := handlers.RequireRole("admin")

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		metrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, jwtSecret)
		})
		r.Route("/products", func(r chi.Router) {
			handlers.ProductsRouter(r, catalogService)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Use(authMiddleware)
			handlers.CartRouter(r, cartService)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Use(authMiddleware)
			handlers.OrdersRouter(r, orderService)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			handlers.AdminRouter(r, catalogService, orderService, userService)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("starting server")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	st := storage.NewStorage(backend)
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"backend": cfg.Storage.Backend,
		"bucket":  st.Bucket(),
	}).Info("image storage ready")
	return st, nil
}

func newMQ(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	var backend mq.Backend
	switch cfg.MQ.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		backend = client
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}

	logrus.WithField("backend", cfg.MQ.Backend).Info("event broker ready")
	return mq.New(backend), nil
}
