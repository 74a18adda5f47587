package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/upcast-project/upconsent/internal/config"
)

// MongoDB holds the MongoDB client and the application database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	logger   *logrus.Logger
}

// ConnectMongo connects to MongoDB and verifies the connection
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig, logger *logrus.Logger) (*MongoDB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.WithField("database", cfg.Database).Info("Connecting to MongoDB...")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Successfully connected to MongoDB")

	return &MongoDB{
		Client:   client,
		Database: client.Database(cfg.Database),
		logger:   logger,
	}, nil
}

// HealthCheck checks if MongoDB is reachable
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	if m.Client == nil {
		return fmt.Errorf("mongodb client is not initialized")
	}
	if err := m.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (m *MongoDB) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	m.logger.Info("Closing MongoDB connection...")
	return m.Client.Disconnect(ctx)
}
