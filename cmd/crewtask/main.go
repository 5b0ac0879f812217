// cmd/crewtask/main.go

// crewtask provisions the CrewTask backend: it loads configuration,
// connects to MongoDB, ensures the indexes the stores rely on, and
// promotes the configured bootstrap superadmin.
package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/bootstrap"
	"github.com/crewtask/crewtask/internal/app/docstore/mongodoc"
	userstore "github.com/crewtask/crewtask/internal/app/store/users"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(context.Background(), logger); err != nil {
		logger.Error("provisioning failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	coreCfg, appCfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateConfig(coreCfg, appCfg, logger); err != nil {
		return err
	}

	deps, err := bootstrap.ConnectDB(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bootstrap.Shutdown(ctx, deps, logger); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	if err := bootstrap.EnsureSchema(ctx, deps, logger); err != nil {
		return err
	}

	store := mongodoc.New(deps.MongoDatabase)
	users := userstore.New(store)
	if err := bootstrap.EnsureSuperAdmin(ctx, users, appCfg.SuperAdminEmail, logger); err != nil {
		return err
	}

	logger.Info("provisioning complete")
	return nil
}
