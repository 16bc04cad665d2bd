// Package cache реализует кеш на Redis: read-through кеширование аккаунтов
// и быстрый маркер уже обработанных webhook-событий.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/config"
	"github.com/redis/go-redis/v9"
)

// Cache инкапсулирует клиент Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение по ключу и десериализует его в result.
// Возвращает false без ошибки, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сериализует значение в JSON и сохраняет с временем жизни.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(ctx, key, jsonData, expiration).Err()
}

// Invalidate удаляет значение из кеша по ключу.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.Db.Del(ctx, key).Err()
}

// MarkEvent отмечает событие обработанным. Возвращает true, если маркер
// поставлен впервые (SETNX), и false, если событие уже отмечено.
func (c *Cache) MarkEvent(ctx context.Context, eventID string, expiration time.Duration) (bool, error) {
	const op = "cache.MarkEvent"
	ok, err := c.Db.SetNX(ctx, eventKey(eventID), "1", expiration).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// SeenEvent сообщает, отмечено ли событие обработанным.
func (c *Cache) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	const op = "cache.SeenEvent"
	n, err := c.Db.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

// AccountKey строит ключ кеша аккаунта по UID. Вынесен в пакет, чтобы
// запись и инвалидация в разных сервисах использовали один формат.
func AccountKey(uid string) string {
	return "account:" + uid
}
