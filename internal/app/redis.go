package app

import (
	"credential-manager/internal/common/logging"
	"credential-manager/internal/redis"
)

// initializeRedis puts a Redis token cache in front of the database and
// enables the refresher's cross-process locks.
func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled {
		app.Logger.Info("Redis: disabled (token cache and refresh locks off)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Storage = redis.NewTokenCache(app.Storage, redisClient, app.Logger)
	app.Logger.Info("Redis: connected", logging.String("address", app.Config.RedisAddress))
	return nil
}
