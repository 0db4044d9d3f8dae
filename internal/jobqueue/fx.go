package jobqueue

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/config"
	"github.com/smallbiznis/premium/internal/jobqueue/domain"
	"github.com/smallbiznis/premium/internal/jobqueue/queue"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides the queue, the locker and the worker without starting it.
var Module = fx.Module("jobqueue",
	fx.Provide(
		provideConfig,
		provideRedis,
		provideQueue,
		provideLocker,
		NewWorker,
	),
)

// RunModule starts the worker loop with the application.
var RunModule = fx.Module("jobqueue.run",
	fx.Invoke(runWorker),
)

type queueParams struct {
	fx.In

	Config config.Config
	Worker Config
	DB     *gorm.DB
	GenID  *snowflake.Node
	Clock  clock.Clock
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

func provideRedis(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideQueue(p queueParams) domain.Queue {
	if p.Config.Queue.Backend == config.QueueBackendRedis {
		if p.Redis != nil {
			return queue.NewRedisQueue(p.Redis, p.GenID, p.Clock, p.Worker.Lease)
		}
		p.Log.Warn("redis queue requested without REDIS_ADDR, using database queue")
	}
	return queue.NewGormQueue(p.DB, p.GenID, p.Clock, p.Worker.Lease)
}

func provideLocker(client *redis.Client) domain.Locker {
	if client == nil {
		return nil
	}
	return queue.NewRedisLocker(client)
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				worker.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return fmt.Errorf("worker did not stop: %w", stopCtx.Err())
			}
		},
	})
}
