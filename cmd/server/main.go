package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/auth"
	"github.com/upcast-project/upconsent/internal/client"
	"github.com/upcast-project/upconsent/internal/config"
	"github.com/upcast-project/upconsent/internal/dao"
	"github.com/upcast-project/upconsent/internal/database"
	"github.com/upcast-project/upconsent/internal/metrics"
	"github.com/upcast-project/upconsent/internal/negotiation"
	"github.com/upcast-project/upconsent/internal/router"
	"github.com/upcast-project/upconsent/internal/service"
	"github.com/upcast-project/upconsent/internal/storage"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

// backend is an opened store backend
type backend struct {
	stores dao.Stores
	health func(ctx context.Context) error
	close  func(ctx context.Context) error
}

func main() {
	// A missing .env file is fine outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	// Set Gin to release mode by default (can be overridden by GIN_MODE env var)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_date": buildDate,
	}).Info("Starting UpConsent API Server...")

	// CONFIG_PATH wins over the configs/config.yaml search
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"config_path": configPath,
		"log_level":   logger.GetLevel().String(),
		"store":       cfg.StoreType(),
	}).Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openBackend(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}

	files, err := storage.NewOSFileStore(cfg.Storage.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize ontology storage")
	}

	m := metrics.New()

	// Upstream clients
	clientOpts := client.Options{
		BaseURL:  cfg.External.BaseURL,
		Timeout:  cfg.External.Timeout,
		Logger:   logger,
		Observer: m,
	}
	identityClient := client.NewIdentityClient(clientOpts, cfg.External.MasterPassword)
	negotiationClient := client.NewNegotiationClient(clientOpts)
	contractOpts := clientOpts
	contractOpts.BaseURL = cfg.External.ContractServiceURL
	contractClient := client.NewContractClient(contractOpts)

	if cfg.External.BaseURL == "" {
		logger.Warn("EXTERNAL_API_BASE_URL is not set; identity and negotiation calls will fail")
	}
	if cfg.External.ContractServiceURL == "" {
		logger.Warn("CONTRACT_SERVICE_URL is not set; contract calls will fail")
	}

	// Initialize services
	authorizer := auth.NewAuthorizer(store.stores.Users, store.stores.Requests, logger)
	userService := service.NewUserService(store.stores.Users, identityClient, authorizer, logger)
	requestService := service.NewRequestService(store.stores.Requests, store.stores.Users, logger)
	ontologyService := service.NewOntologyService(store.stores.Ontologies, files, cfg.Limits.FileUploadBytes, logger)
	negotiationService := service.NewNegotiationService(
		store.stores.Requests,
		store.stores.Users,
		negotiationClient,
		userService,
		negotiation.NewTransformer(),
		logger,
	)
	contractService := service.NewContractService(store.stores.Requests, contractClient, logger)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ontologyService.SeedDefault(seedCtx); err != nil {
		logger.WithError(err).Warn("Failed to seed default ontology")
	}
	seedCancel()

	logger.Info("Services initialized successfully")

	ginRouter := router.SetupRouter(cfg, router.Services{
		Requests:     requestService,
		Users:        userService,
		Ontologies:   ontologyService,
		Negotiations: negotiationService,
		Contracts:    contractService,
		Authorizer:   authorizer,
		Metrics:      m,
		HealthCheck:  store.health,
	}, logger)

	serverAddr := cfg.Server.GetServerAddress()
	server := &http.Server{
		Addr:           serverAddr,
		Handler:        ginRouter,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"hostname": cfg.Server.Hostname,
			"port":     cfg.Server.Port,
			"addr":     serverAddr,
		}).Info("Starting HTTP server...")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	logger.WithField("address", serverAddr).Info("Server is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	identityClient.Close()
	negotiationClient.Close()
	contractClient.Close()

	if err := store.close(ctx); err != nil {
		logger.WithError(err).Error("Failed to close store")
	}

	logger.Info("Server exited gracefully")
}

// openBackend connects the configured store backend
func openBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*backend, error) {
	switch cfg.StoreType() {
	case config.DatabaseTypeMySQL:
		db, err := database.Initialize(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.HealthCheck(ctx); err != nil {
			db.Close()
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		closeDB := func(context.Context) error {
			db.LogStats()
			return db.Close()
		}
		return &backend{
			stores: dao.NewMySQLStores(db),
			health: db.HealthCheck,
			close:  closeDB,
		}, nil

	case config.DatabaseTypeMongoDB:
		mongoDB, err := database.ConnectMongo(ctx, &cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			stores: dao.NewMongoStores(mongoDB.Database),
			health: mongoDB.HealthCheck,
			close:  mongoDB.Close,
		}, nil

	default:
		logger.WithFields(logrus.Fields{
			"firestore_host": cfg.Emulator.FirestoreHost,
			"storage_host":   cfg.Emulator.StorageHost,
		}).Warn("Using in-memory store; data is lost on restart")
		return &backend{
			stores: dao.NewMemoryStore().Stores(),
			health: func(context.Context) error { return nil },
			close:  func(context.Context) error { return nil },
		}, nil
	}
}
