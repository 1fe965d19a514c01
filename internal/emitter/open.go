package emitter

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/redis"
)

// OpenSinks connects the record sinks enabled in cfg. On failure the sinks
// opened so far are closed.
func OpenSinks(ctx context.Context, cfg *config.Config, m *metrics.Metrics) ([]Emitter, error) {
	log := logger.FromContext(ctx)
	opts := SinkOptions{
		RunID:         logger.RunID(ctx),
		BatchSize:     cfg.Expander.BatchSize,
		RetryAttempts: cfg.Sinks.RetryAttempts,
		RetryBackoff:  cfg.Sinks.RetryBackoff,
		Timeout:       cfg.Sinks.Timeout,
		Metrics:       m,
	}

	var sinks []Emitter
	fail := func(err error) ([]Emitter, error) {
		for _, s := range sinks {
			s.Close(ctx)
		}
		return nil, err
	}

	if cfg.Sinks.Kafka {
		sinks = append(sinks, NewKafkaSink(kafka.NewProducer(cfg.Kafka), opts))
		log.Info("kafka sink enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	if cfg.Sinks.Redis {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fail(apperrors.Newf(apperrors.ErrSink, apperrors.ExitIO, "redis: %v", err))
		}
		sinks = append(sinks, NewRedisSink(client, opts))
		log.Info("redis sink enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.KeyPrefix)
	}
	if cfg.Sinks.Postgres {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fail(apperrors.Newf(apperrors.ErrSink, apperrors.ExitIO, "postgres: %v", err))
		}
		if err := client.EnsureFormsTable(ctx, cfg.Postgres.Table); err != nil {
			client.Close()
			return fail(apperrors.Newf(apperrors.ErrSink, apperrors.ExitIO, "postgres: %v", err))
		}
		sinks = append(sinks, NewPostgresSink(client, cfg.Postgres.Table, opts))
		log.Info("postgres sink enabled", "host", cfg.Postgres.Host, "table", cfg.Postgres.Table)
	}
	return sinks, nil
}
