package redis

import (
	"fmt"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/config"
)

// Open builds a connection pool. It returns (nil, nil) when no address is
// configured; callers treat a nil client as "no shared cache".
func Open(cfg config.RedisConfig) (radix.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	pool, err := radix.NewPool("tcp", cfg.Addr, size)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return pool, nil
}
