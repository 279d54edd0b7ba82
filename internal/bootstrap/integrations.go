package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/adapters/events"
	"github.com/converti/converti-api/internal/adapters/objectstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectObjectStore builds the archive replication store and makes sure
// its bucket exists.
func ConnectObjectStore(
	ctx context.Context,
	cfg config.ObjectStoreConfig,
	logger *slog.Logger,
) (*objectstore.ArchiveStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	store, err := objectstore.NewArchiveStore(objectstore.ArchiveStoreOptions{
		Client: client,
		Bucket: cfg.Bucket,
		Region: cfg.Region,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	ensureCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		return nil, fmt.Errorf("ensure archive bucket: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "object store connected", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	}
	return store, nil
}

// EventBus owns the broker connection behind the job event publisher.
type EventBus struct {
	Publisher *events.Publisher
	conn      *amqp.Connection
}

// Close closes the channel and then the connection.
func (b *EventBus) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close amqp channel: %w", err))
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ConnectEvents dials the broker and declares the job event exchange.
func ConnectEvents(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (*EventBus, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Dial: amqp.DefaultDial(connectTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	publisher, err := events.NewPublisher(ch, cfg.Exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if logger != nil {
		logger.InfoContext(ctx, "event broker connected", "exchange", cfg.Exchange)
	}
	return &EventBus{Publisher: publisher, conn: conn}, nil
}
