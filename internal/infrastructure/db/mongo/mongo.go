// Package mongo keeps the admin console's audit trail of session events in
// MongoDB. The store is optional; without MONGO_URI the events are only logged.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout = 10 * time.Second
	appName        = "admin-console"
)

// Config selects the database that holds the auth_events collection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect opens the audit store and pings it so a bad MONGO_URI fails at
// startup instead of on the first sign-in.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("audit store connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("audit store ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}
