package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/config"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/pocketbase"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
)

// storageDeps — выбранное хранилище записей и outbox к нему.
type storageDeps struct {
	store  domain.RecordStore
	outbox domain.OutboxRepository
	close  func() error
}

// initStorage открывает хранилище по драйверу из конфигурации.
// Для pocketbase outbox остаётся in-memory: у удалённого хранилища нет своей очереди.
func initStorage(ctx context.Context, cfg config.StoreConfig, logger *log.Entry) (*storageDeps, error) {
	logger = logger.WithField("store_driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory record store, data is lost on restart")
		return &storageDeps{
			store:  memory.NewRecordStore(),
			outbox: memory.NewOutboxRepository(),
			close:  func() error { return nil },
		}, nil

	case config.DriverPocketBase:
		client, err := pocketbase.New(cfg.PocketBaseURL,
			pocketbase.WithToken(cfg.PocketBaseToken),
			pocketbase.WithTimeout(cfg.PocketBaseTimeout),
			pocketbase.WithLogger(logger.WithField("layer", "pocketbase")),
		)
		if err != nil {
			return nil, fmt.Errorf("init pocketbase client: %w", err)
		}
		logger.WithField("url", cfg.PocketBaseURL).Info("pocketbase record store configured")
		return &storageDeps{
			store:  client,
			outbox: memory.NewOutboxRepository(),
			close:  func() error { return nil },
		}, nil

	case config.DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires dsn")
		}
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := pg.MigrateUp(ctx, 0); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return &storageDeps{
			store:  postgres.NewRecordStore(pg, postgres.WithLogger(logger.WithField("layer", "postgres"))),
			outbox: postgres.NewOutboxRepository(pg),
			close:  pg.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
