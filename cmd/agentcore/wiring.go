package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/bus"
	"github.com/driftloop/agentcore/pkg/config"
	"github.com/driftloop/agentcore/pkg/stateprovider"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// buildStateProvider constructs the configured Provider (spec.md §4.8
// C9). Each kind maps to one of pkg/stateprovider's implementations;
// an unrecognized kind is a configuration error, not a silent fallback.
func buildStateProvider(cfg config.StateProviderConfig) (stateprovider.Provider, error) {
	switch cfg.Kind {
	case "", "file":
		baseDir := cfg.BaseDir
		if baseDir == "" {
			baseDir = "."
		}
		return stateprovider.NewFile(baseDir), nil
	case "memory":
		return stateprovider.NewInMemory(), nil
	case "sqlite":
		return stateprovider.NewSQLite(cfg.SQLitePath)
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse state_provider.redis_url: %w", err)
		}
		return stateprovider.NewRedis(redis.NewClient(opts)), nil
	default:
		return nil, fmt.Errorf("unknown state_provider.kind %q", cfg.Kind)
	}
}

// buildBus constructs the configured Event Bus (part of C8). Kafka requires at
// least one broker; the kafka.Writer is otherwise left to fail lazily
// on first publish, matching go-redis/kafka-go's own lazy-dial idiom.
func buildBus(cfg config.BusConfig, log zerolog.Logger) bus.Bus {
	if cfg.Kind == "kafka" && len(cfg.KafkaBrokers) > 0 {
		return bus.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	}
	return bus.NewInProc(log)
}

// mapForceStrategy bridges config.ReasoningConfig.ForceStrategy's
// documented short-form values ("direct"|"light"|"deep"|"") onto
// tracker.Strategy's actual constant values, which spell the planning
// and deep-reasoning strategies out in full ("light_planning",
// "deep_reasoning"). An unrecognized non-empty value is treated as "no
// forced strategy" rather than silently picking one.
func mapForceStrategy(short string, log zerolog.Logger) tracker.Strategy {
	switch short {
	case "":
		return ""
	case "direct":
		return tracker.StrategyDirect
	case "light":
		return tracker.StrategyLightPlanning
	case "deep":
		return tracker.StrategyDeepReasoning
	default:
		log.Warn().Str("force_strategy", short).Msg("unrecognized reasoning.force_strategy, ignoring")
		return ""
	}
}
