package factory

import (
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/config"
	"github.com/roni12291832/nexus-car/internal/pkg/queue"
	queue_memory "github.com/roni12291832/nexus-car/internal/pkg/queue/memory"
	queue_redis "github.com/roni12291832/nexus-car/internal/pkg/queue/redis"
	"github.com/roni12291832/nexus-car/internal/pkg/ratelimiter"
	limiter_memory "github.com/roni12291832/nexus-car/internal/pkg/ratelimiter/memory"
	limiter_redis "github.com/roni12291832/nexus-car/internal/pkg/ratelimiter/redis"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/postgres"
	storage_redis "github.com/roni12291832/nexus-car/internal/storage/redis"
	"github.com/roni12291832/nexus-car/internal/storage/sqlite"
)

type Repositories struct {
	Instance storage.InstanceRepository
	Lead     storage.LeadRepository
	Board    storage.BoardRepository
	Rule     storage.RuleRepository
	Vehicle  storage.VehicleRepository
	Settings storage.SettingsRepository
	Tenant   storage.TenantRepository

	RedisClient *storage_redis.Client // nil quando o Redis está desabilitado
	EventQueue  queue.Queue
	RateLimiter ratelimiter.Limiter
}

func NewRepositories(cfg config.Config, log *zap.Logger) (*Repositories, error) {
	log.Info("inicializando repositórios", zap.String("driver", cfg.Storage.Driver))

	var (
		eventQueue  queue.Queue
		rateLimiter ratelimiter.Limiter
		storeRedis  *storage_redis.Client
		err         error
	)

	if cfg.Redis.Enabled {
		storeRedis, err = storage_redis.New(cfg.Redis, log)
		if err != nil {
			log.Error("erro ao conectar com Redis", zap.Error(err))
			return nil, err
		}
		redisClient := storeRedis.RDB()
		eventQueue = queue_redis.NewQueue(redisClient, "automation:events")
		rateLimiter = limiter_redis.NewLimiter(redisClient)
		log.Info("Redis conectado, fila e limiter configurados")
	} else {
		log.Info("usando implementações em memória (Redis desabilitado)")
		eventQueue = queue_memory.NewQueue(10000)
		rateLimiter = limiter_memory.NewLimiter()
	}

	switch cfg.Storage.Driver {
	case "sqlite", "":
		db, err := sqlite.New(cfg.Storage.DataDir, log)
		if err != nil {
			log.Error("erro ao conectar com SQLite", zap.Error(err))
			return nil, err
		}

		log.Info("repositórios SQLite criados com sucesso", zap.String("data_dir", cfg.Storage.DataDir))
		return &Repositories{
			Instance:    sqlite.NewInstanceRepository(db),
			Lead:        sqlite.NewLeadRepository(db),
			Board:       sqlite.NewBoardRepository(db),
			Rule:        sqlite.NewRuleRepository(db),
			Vehicle:     sqlite.NewVehicleRepository(db),
			Settings:    sqlite.NewSettingsRepository(db),
			Tenant:      sqlite.NewTenantRepository(db),
			RedisClient: storeRedis,
			EventQueue:  eventQueue,
			RateLimiter: rateLimiter,
		}, nil

	case "postgres":
		db, err := postgres.New(cfg.DB, log)
		if err != nil {
			log.Error("erro ao conectar com PostgreSQL", zap.Error(err))
			return nil, err
		}

		log.Info("repositórios PostgreSQL criados com sucesso")
		return &Repositories{
			Instance:    postgres.NewInstanceRepository(db),
			Lead:        postgres.NewLeadRepository(db),
			Board:       postgres.NewBoardRepository(db),
			Rule:        postgres.NewRuleRepository(db),
			Vehicle:     postgres.NewVehicleRepository(db),
			Settings:    postgres.NewSettingsRepository(db),
			Tenant:      postgres.NewTenantRepository(db),
			RedisClient: storeRedis,
			EventQueue:  eventQueue,
			RateLimiter: rateLimiter,
		}, nil

	default:
		log.Error("driver de storage desconhecido", zap.String("driver", cfg.Storage.Driver))
		return nil, &ErrUnknownDriver{Driver: cfg.Storage.Driver}
	}
}

type ErrUnknownDriver struct {
	Driver string
}

func (e *ErrUnknownDriver) Error() string {
	return "storage: driver desconhecido: " + e.Driver
}
