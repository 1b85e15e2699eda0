package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/config"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/modules/user"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/georgemunganga/printa-pos/internal/platform/messaging"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
	"github.com/georgemunganga/printa-pos/internal/storage/memory"
)

const (
	brokerConnectTimeout = 30 * time.Second
	redisConnectTimeout  = 10 * time.Second
	sandboxDelay         = 500 * time.Millisecond
)

// storage bundles the transactor with one repository per module.
type storage struct {
	tx             database.Transactor
	locations      inventory.LocationRepository
	inventory      inventory.Repository
	idempotency    idempotency.Repository
	catalog        catalog.Repository
	users          user.Repository
	sessions       session.Repository
	loyalty        loyalty.Repository
	sales          sale.Repository
	reconciliation reconciliation.Repository
	outbox         outbox.Repository

	ping  func(ctx context.Context) error
	close func()
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		m := memory.New()
		inv := m.Inventory()
		return &storage{
			tx:             m,
			locations:      inv,
			inventory:      inv,
			idempotency:    m.Idempotency(),
			catalog:        m.Catalog(),
			users:          m.Users(),
			sessions:       m.Sessions(),
			loyalty:        m.Loyalty(),
			sales:          m.Sales(),
			reconciliation: m.Reconciliation(),
			outbox:         m.Outbox(),
			ping:           func(context.Context) error { return nil },
			close:          func() {},
		}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("connected to postgres")

	return &storage{
		tx:             db,
		locations:      inventory.NewLocationPostgresRepository(db),
		inventory:      inventory.NewPostgresRepository(db),
		idempotency:    idempotency.NewPostgresRepository(db),
		catalog:        catalog.NewPostgresRepository(db),
		users:          user.NewPostgresRepository(db),
		sessions:       session.NewPostgresRepository(db),
		loyalty:        loyalty.NewPostgresRepository(db),
		sales:          sale.NewPostgresRepository(db),
		reconciliation: reconciliation.NewPostgresRepository(db),
		outbox:         outbox.NewPostgresRepository(db),
		ping:           db.PingContext,
		close:          func() { _ = db.Close() },
	}, nil
}

// newPublisher picks the broker the outbox dispatcher delivers to.
func newPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (outbox.Publisher, func(), error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		conn, ch, err := messaging.DialRabbitMQ(ctx, cfg.RabbitMQURL, cfg.RabbitMQExchange, brokerConnectTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewRabbitPublisher(ch, cfg.RabbitMQExchange), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	case "kafka":
		w := messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		return messaging.NewKafkaPublisher(w), func() { _ = w.Close() }, nil
	default:
		return messaging.NewLogPublisher(logger), func() {}, nil
	}
}

// priceCache connects to Redis when configured. An unreachable Redis
// disables the cache instead of failing startup.
func priceCache(ctx context.Context, cfg config.Config, repo catalog.Repository, logger *zap.Logger) ([]catalog.Option, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = redisConnectTimeout
	err := backoff.Retry(func() error {
		return rdb.Ping(ctx).Err()
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		logger.Warn("redis unreachable; price cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return nil, func() {}
	}
	logger.Info("price cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.PriceCacheTTL))
	cache := catalog.NewCachedPrices(repo, rdb, cfg.PriceCacheTTL, logger)
	return []catalog.Option{catalog.WithPriceCache(cache)}, func() { _ = rdb.Close() }
}

// paymentGateways approves cash at the drawer and sends cards to the
// terminal, or to the sandbox when no terminal is configured.
func paymentGateways(cfg config.Config) payment.Registry {
	card := payment.NewSandboxGateway(sandboxDelay)
	if cfg.CardTerminalURL != "" {
		card = payment.NewTerminalGateway(cfg.CardTerminalURL, &http.Client{})
	}
	return payment.Registry{
		payment.MethodCash: payment.NewCashGateway(),
		payment.MethodCard: card,
	}
}
