package redisholder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/internal/config"
)

// Build connects to the configured nodes, preferring cluster mode, and keeps
// the connection alive from a background health loop until ctx is done.
func Build(ctx context.Context, cfg *config.RedisConfig) (*Holder, error) {
	var cl redis.UniversalClient
	cl, err := newClusterClient(cfg)
	if err != nil {
		clusterErr := err
		cl, err = newClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		log.Info().Str("component", "redis").Err(clusterErr).Msg("cluster client failed, using single-node client")
	}

	h := NewHolder(cl)

	go healthLoop(ctx, h, cfg)

	return h, nil
}

func healthLoop(ctx context.Context, h *Holder, cfg *config.RedisConfig) {
	logger := log.With().Str("component", "redis").Logger()
	logger.Debug().Dur("interval", cfg.HealthCheckInterval).Msg("health loop started")

	ping := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.Get().Ping(pingCtx).Err()
		cancel()

		if err == nil {
			return
		}
		logger.Warn().Err(err).Msg("ping failed, attempting reconnect")

		// Rebuild client (cluster first, then fallback)
		newCl, newErr := reconnect(cfg)
		if newErr != nil {
			logger.Error().Err(newErr).Msg("reconnect failed")
			return
		}

		old := h.Swap(newCl)
		if old != nil {
			_ = old.Close()
		}
		logger.Info().Msg("reconnected successfully")
	}

	interval := cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = h.Close()
			logger.Debug().Err(ctx.Err()).Msg("health loop stopped")
			return
		case <-t.C:
			ping()
		}
	}
}

func reconnect(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	cl, err := newClusterClient(cfg)
	if err == nil {
		return cl, nil
	}
	return newClient(cfg)
}

func newClusterClient(cfg *config.RedisConfig) (*redis.ClusterClient, error) {
	if len(cfg.Nodes) < 1 {
		return nil, errors.New("no nodes defined")
	}

	nodeAddrs := make([]string, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		nodeAddrs = append(nodeAddrs, node.Addr())
	}

	cl := redis.NewClusterClient(&redis.ClusterOptions{
		RouteByLatency: true,
		Password:       cfg.Password,
		Addrs:          nodeAddrs,
		DialTimeout:    cfg.DialTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PoolSize:       cfg.PoolSize,
		PoolTimeout:    30 * time.Second,
		MaxRetries:     30,
	})

	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("error pinging redis cluster: %w", err)
	}

	return cl, nil
}

func newClient(cfg *config.RedisConfig) (*redis.Client, error) {
	var stickyErr = errors.New("no nodes defined")

	for _, node := range cfg.Nodes {
		cl := redis.NewClient(&redis.Options{
			Addr:         node.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DatabaseID,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})

		if err := cl.Ping(context.Background()).Err(); err != nil {
			_ = cl.Close()
			stickyErr = fmt.Errorf("error pinging redis server %s: %w", node.Addr(), err)
			continue
		}

		return cl, nil
	}

	return nil, stickyErr
}
