package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rentbook/internal/app/booking"
	"rentbook/internal/app/handlers/payments"
	"rentbook/internal/app/middleware"
	appoutbox "rentbook/internal/app/outbox"
	"rentbook/internal/app/policies"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/payment"
	"rentbook/internal/infra/broker"
	"rentbook/internal/infra/broker/kafka"
	natsbroker "rentbook/internal/infra/broker/nats"
	redisstore "rentbook/internal/infra/cache/redis"
	"rentbook/internal/infra/config"
	mongostore "rentbook/internal/infra/db/mongo"
	"rentbook/internal/infra/db/postgres"
	ginserver "rentbook/internal/infra/http/gin"
	"rentbook/internal/infra/inbox"
	"rentbook/internal/infra/obs"
	"rentbook/internal/infra/outbox"
	"rentbook/internal/infra/storage/memory"
)

const (
	natsStream      = "RENTBOOK"
	paymentsDurable = "rentbook-payments"
)

// relayStore is an outbox the relay worker can drain.
type relayStore interface {
	appoutbox.Outbox
	outbox.Store
	Notify() <-chan struct{}
}

type application struct {
	service   *booking.Service
	handlers  ginserver.Handlers
	checks    map[string]obs.Check
	relay     *outbox.Worker
	consumers []func(context.Context) error

	putItem func(context.Context, catalog.Item) error
	migrate []func(context.Context) error
	closers []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{checks: make(map[string]obs.Check)}
	var (
		factory  uow.UoWFactory
		box      relayStore
		receipts payment.Repository
		dedupe   payments.Inbox
		idemp    middleware.IdempotencyStore
	)

	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.checks["mongo"] = client.Ping
		items := mongostore.NewItemRepository(client.DB)
		rentals := mongostore.NewRentalRepository(client.DB)
		days := mongostore.NewAvailabilityRepository(client.DB)
		f := mongostore.Factory{DB: client.DB, ItemsRepo: items, RentalsRepo: rentals, AvailabilityRepo: days}
		mongoBox := outbox.NewMongoStore(client.DB)
		paymentsRepo := mongostore.NewPaymentRepository(client.DB)
		inboxRepo := inbox.NewStore(client.DB, paymentsDurable)
		idempRepo := mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		app.migrate = append(app.migrate, func(ctx context.Context) error {
			return mongostore.EnsureIndexes(ctx, rentals, days, paymentsRepo, mongoBox, inboxRepo, idempRepo)
		})
		app.putItem = items.Upsert
		factory, box, receipts, dedupe, idemp = f, mongoBox, paymentsRepo, inboxRepo, idempRepo

	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return db.Close() })
		app.checks["postgres"] = db.PingContext
		app.migrate = append(app.migrate, func(ctx context.Context) error { return postgres.Migrate(ctx, db) })
		app.putItem = postgres.NewItemRepository(db).Upsert
		factory = postgres.Factory{DB: db}
		box = postgres.NewOutbox(db)
		receipts = &postgres.PaymentRepository{DB: db}
		dedupe = &postgres.Inbox{DB: db, Consumer: paymentsDurable}
		idemp = memory.NewIdempotencyStore(cfg.IdempotencyTTL)

	default:
		store := memory.NewStore()
		app.putItem = store.PutItem
		factory, box, receipts, dedupe = memory.Factory{Store: store}, store.Outbox(), store, store
		idemp = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, redisstore.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			app.Close(context.Background())
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		app.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		idemp = redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)
	}

	app.service = booking.NewService(booking.Deps{
		UoWFactory:   factory,
		Outbox:       box,
		Payments:     policies.ReceiptPayments{Receipts: receipts},
		Idempotency:  idemp,
		RetryBackoff: cfg.TxRetryBackoff,
		Logger:       logger,
	})
	app.handlers = ginserver.Handlers{
		Rentals:      ginserver.RentalHandler{Service: app.service, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Service: app.service, Logger: logger},
		AllowOrigins: cfg.CORSOrigins,
	}

	paymentsHandler := &payments.SucceededHandler{Receipts: receipts, Inbox: dedupe, Logger: logger}
	onPayment := broker.HandlerFunc(func(ctx context.Context, msg broker.Message) error {
		err := paymentsHandler.HandlePayload(ctx, msg.Payload)
		if errors.Is(err, payments.ErrMalformedEvent) {
			return broker.Drop(err)
		}
		return err
	})
	if err := app.wireBroker(ctx, cfg, logger, box, onPayment); err != nil {
		app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *application) wireBroker(ctx context.Context, cfg config.Config, logger *slog.Logger, box relayStore, onPayment broker.Handler) error {
	var producer outbox.Producer
	switch cfg.EventsBroker {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.Config("rentbook-relay"))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
		producer = p

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.Config(cfg.KafkaGroupID), onPayment, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
		a.consumers = append(a.consumers, func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.PaymentsTopic})
		})

	case config.BrokerNATS:
		client, err := natsbroker.Connect(ctx, cfg.NATSURL, natsbroker.StreamConfig{
			Name:     natsStream,
			Subjects: streamSubjects(cfg.KafkaTopicPrefix, cfg.PaymentsTopic),
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { client.Close(); return nil })
		a.checks["nats"] = client.Ping
		producer = client
		a.consumers = append(a.consumers, func(ctx context.Context) error {
			return client.Consume(ctx, natsStream, paymentsDurable, []string{cfg.PaymentsTopic}, onPayment, logger)
		})

	default:
		return nil
	}

	a.relay = &outbox.Worker{
		Store:       box,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Wake:        box.Notify(),
		Logger:      logger,
	}
	return nil
}

// streamSubjects covers every relayed topic plus the payments topic unless
// the relay wildcard already matches it.
func streamSubjects(prefix, paymentsTopic string) []string {
	subjects := []string{prefix + "*.events.v1"}
	parts := strings.Split(paymentsTopic, ".")
	if prefix != "" || len(parts) != 3 || parts[1] != "events" || parts[2] != "v1" {
		subjects = append(subjects, paymentsTopic)
	}
	return subjects
}

// Migrate creates the schema or indexes of the configured backend.
func (a *application) Migrate(ctx context.Context) error {
	for _, m := range a.migrate {
		if err := m(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *application) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		slog.Default().Warn("shutdown cleanup failed", "error", err)
	}
}
