package storage

import (
	"context"
	"fmt"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/config"
)

type FactoryResult struct {
	Driver  string
	Storage Storage
}

func FromConfig(ctx context.Context, cfg config.ArchiveConfig) (FactoryResult, error) {
	switch cfg.Driver {
	case "", "none":
		return FactoryResult{Driver: "none", Storage: Discard{}}, nil

	case "local":
		return FactoryResult{Driver: "local", Storage: NewLocal(cfg.LocalDir)}, nil

	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return FactoryResult{}, fmt.Errorf("s3 archive config missing: region and bucket required")
		}
		s, err := NewS3(ctx, S3Config{
			Region: cfg.S3Region,
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
		})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Storage: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown archive driver: %s", cfg.Driver)
	}
}
