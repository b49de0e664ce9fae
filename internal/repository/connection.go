package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoSettings struct {
	URI      string
	Database string
	AppName  string
	PoolSize uint64
}

// ConnectMongoDB opens a client and verifies the primary is reachable.
func ConnectMongoDB(ctx context.Context, s MongoSettings) (*mongo.Database, error) {
	if s.PoolSize == 0 {
		s.PoolSize = 100
	}

	clientOpts := options.Client().
		ApplyURI(s.URI).
		SetAppName(s.AppName).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(s.PoolSize).
		SetMinPoolSize(s.PoolSize / 10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(s.Database), nil
}
