package main

import (
	"context"
	"os"

	"github.com/scoutlabs/pinecone-scout/cmd/mainconfig"
	"github.com/scoutlabs/pinecone-scout/internal/app/bootstrap"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

func main() {
	cfg := mainconfig.LoadEnv()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: "text", Output: os.Stderr})

	build := func(ctx context.Context) (*bootstrap.App, error) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return bootstrap.Build(ctx, cfg, awsCfg, logger)
	}

	if err := newRootCmd(build).Execute(); err != nil {
		os.Exit(1)
	}
}
