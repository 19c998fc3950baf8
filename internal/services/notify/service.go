package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	DefaultChannel    = "netcop:tclass:updates"
	DefaultVersionKey = "netcop:tclass:version"
)

// Event announces a newly applied signature catalog
type Event struct {
	RunID     string    `json:"run_id"`
	Version   string    `json:"version"`
	Changed   int       `json:"changed"`
	AppliedAt time.Time `json:"applied_at"`
}

// Notifier tells downstream classifiers that the traffic classes changed
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop is used when notifications are disabled
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Config holds the redis notification settings
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	Channel    string `yaml:"channel"`
	VersionKey string `yaml:"version_key"`
}

// Redis publishes update events and keeps the last applied version under a key
type Redis struct {
	redis  redis.UniversalClient
	logger *zap.Logger
	config Config
}

// NewRedisClient builds the redis client described by config
func NewRedisClient(config Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:   config.Password,
		DB:         config.DB,
		MaxRetries: config.MaxRetries,
	})
}

// NewRedis creates a redis backed notifier
func NewRedis(redisClient redis.UniversalClient, logger *zap.Logger, config Config) *Redis {
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.VersionKey == "" {
		config.VersionKey = DefaultVersionKey
	}

	return &Redis{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// Notify stores the version and publishes the event in one pipeline
func (r *Redis) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.config.VersionKey, event.Version, 0)
	pipe.Publish(ctx, r.config.Channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish update event: %w", err)
	}

	r.logger.Info("Update event published",
		zap.String("channel", r.config.Channel),
		zap.String("version", event.Version))
	return nil
}
