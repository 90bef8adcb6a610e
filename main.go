package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/jobs"
	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/routes"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	db := config.InitDatabase(models.All()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := storage.New(ctx, cfg)
	if err != nil {
		// uploads are disabled; everything else keeps working
		utils.Logger.Error("asset storage unavailable", zap.String("driver", cfg.StorageDriver), zap.Error(err))
		st = nil
	}

	svc := services.NewFromDB(db, utils.RedisCache{}, nil, services.OptionsFromConfig(cfg))
	r := routes.SetupRouter(db, svc, st)

	var hooks []func()
	if cfg.JobsEnabled {
		sched := jobs.NewScheduler(db, svc.Leaderboard, st, cfg.Location(), time.Duration(cfg.OrphanUploadHours)*time.Hour)
		if err := sched.Start(ctx); err != nil {
			utils.Sugar.Fatalf("scheduler: %v", err)
		}
		hooks = append(hooks, sched.Stop)
	}
	hooks = append(hooks, cancel)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, hooks...); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
