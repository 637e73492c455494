package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/config"
)

// Client embala a conexão Redis usada pela fila de eventos, pelo rate
// limiter e pelo lock de reconciliação.
type Client struct {
	rdb *redis.Client
	log *zap.Logger
}

func New(cfg config.RedisConfig, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping em %s: %w", cfg.Addr, err)
	}

	log.Info("redis: conexão estabelecida", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &Client{rdb: rdb, log: log}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// RDB expõe o cliente cru para os consumidores que falam Redis direto.
func (c *Client) RDB() *redis.Client {
	return c.rdb
}
