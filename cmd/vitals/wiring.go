package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/config"
	"github.com/vitals/vitals/internal/domain/processor"
	"github.com/vitals/vitals/internal/platform/auth"
	"github.com/vitals/vitals/internal/platform/db"
	"github.com/vitals/vitals/internal/platform/healthcare"
	"github.com/vitals/vitals/internal/platform/pubsub"
)

const connectTimeout = 10 * time.Second

// storeBackend is the configured Observation store. pool and observations
// are only set for the Postgres backend.
type storeBackend struct {
	store        processor.Store
	pool         *pgxpool.Pool
	observations *db.ObservationStore
}

func (b *storeBackend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storeBackend, error) {
	if cfg.StoreBackend == config.BackendPostgres {
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		obs := db.NewObservationStore(pool)
		logger.Info().Msg("using Postgres observation store")
		return &storeBackend{store: obs, pool: pool, observations: obs}, nil
	}

	tokens, err := auth.NewTokenSource(auth.Config{
		Mode:            cfg.AuthMode,
		AccessToken:     cfg.AccessToken,
		CredentialsFile: cfg.CredentialsFile,
		MetadataURL:     cfg.MetadataURL,
		Timeout:         cfg.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure credentials: %w", err)
	}
	client := healthcare.NewClient(healthcare.Config{
		BaseURL:    cfg.HealthcareAPIURL,
		StorePath:  cfg.FHIRStorePath,
		Timeout:    cfg.StoreTimeout,
		MaxRetries: cfg.StoreMaxRetries,
	}, tokens, logger)
	logger.Info().Str("fhir_store", cfg.FHIRStorePath).Str("auth_mode", cfg.AuthMode).Msg("using Cloud Healthcare FHIR store")
	return &storeBackend{store: client}, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, db.PoolConfig{
		URL:         cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		PingTimeout: connectTimeout,
	})
}

func mqttConfig(cfg *config.Config, role string) pubsub.MQTTConfig {
	return pubsub.MQTTConfig{
		Broker:         cfg.MQTTBroker,
		ClientID:       cfg.MQTTClientID + "-" + role,
		Username:       cfg.MQTTUsername,
		Password:       cfg.MQTTPassword,
		Topic:          cfg.TopicID,
		QoS:            byte(cfg.MQTTQoS),
		ConnectTimeout: connectTimeout,
	}
}

// openPublisher connects the simulator's transport and returns the name
// shown in the run banner.
func openPublisher(ctx context.Context, cfg *config.Config) (pubsub.Publisher, string, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		mc := mqttConfig(cfg, "sim")
		client, err := pubsub.ConnectMQTT(mc)
		if err != nil {
			return nil, "", err
		}
		return pubsub.NewMQTTPublisher(client, mc.Topic, mc.QoS), cfg.TopicPath(), nil
	case config.TransportRedis:
		client, err := pubsub.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, "", err
		}
		return pubsub.NewRedisPublisher(client, cfg.TopicID), cfg.TopicPath(), nil
	case config.TransportPush:
		return pubsub.NewPushPublisher(cfg.PushEndpoint, cfg.Subscription(), cfg.RequestTimeout), cfg.PushEndpoint, nil
	}
	return nil, "", fmt.Errorf("unsupported transport %q", cfg.Transport)
}

func openSubscriber(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (pubsub.Subscriber, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		mc := mqttConfig(cfg, "processor")
		client, err := pubsub.ConnectMQTT(mc)
		if err != nil {
			return nil, err
		}
		return pubsub.NewMQTTSubscriber(client, mc.Topic, mc.QoS, logger), nil
	case config.TransportRedis:
		client, err := pubsub.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return pubsub.NewRedisConsumer(client, pubsub.RedisConsumerConfig{
			Stream:   cfg.TopicID,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
			Count:    10,
			Block:    5 * time.Second,
		}, logger), nil
	}
	return nil, fmt.Errorf("transport %q cannot be consumed", cfg.Transport)
}
