package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jengzang/lorg-backend-go/internal/annotation"
	"github.com/jengzang/lorg-backend-go/internal/api"
	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/database"
	"github.com/jengzang/lorg-backend-go/internal/handler"
	"github.com/jengzang/lorg-backend-go/internal/middleware"
	"github.com/jengzang/lorg-backend-go/internal/novelty"
	"github.com/jengzang/lorg-backend-go/internal/repository"
	"github.com/jengzang/lorg-backend-go/internal/service"
	"github.com/jengzang/lorg-backend-go/internal/strava"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	db, err := database.Open(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// 执行迁移
	if err := database.NewMigrationManager(db).RunMigrations(context.Background()); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// 网格参数在启动时固定，整个进程共用
	params := cfg.NoveltyParams()
	log.Printf("Novelty grid: cell=%g° snap=%g° simplify=%gm radius=%d",
		params.CellSizeDeg, params.SnapDeg, params.SimplifyMeters, params.NeighborRadius)

	// Strava 客户端与描述回写
	client := strava.NewClient(cfg.StravaAPIBase, &http.Client{Timeout: 15 * time.Second})
	activities := repository.NewActivityRepository(db)
	dispatcher := annotation.NewDispatcher(activities, client, cfg.AnnotateDryRun)

	// 业务服务
	activityService := service.NewActivityService(db, novelty.NewEngine(params), dispatcher)
	cellService := service.NewCellService(repository.NewVisitedCellRepository(db), params.CellSizeDeg, cfg.VisitedCellCap)

	// 本地回放数据（可选）
	var fixtures *strava.FixtureSource
	if cfg.StravaFixtureDir != "" {
		fixtures = &strava.FixtureSource{Dir: cfg.StravaFixtureDir}
		log.Printf("Serving fixture activities from %s", cfg.StravaFixtureDir)
	}

	// 限流
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stop := make(chan struct{})
	defer close(stop)
	limiter.StartCleanup(time.Minute, stop)

	// 初始化路由
	router := api.SetupRouter(cfg, api.Handlers{
		Activity:   handler.NewActivityHandler(activityService, fixtures),
		Cell:       handler.NewCellHandler(cellService),
		Annotation: handler.NewAnnotationHandler(dispatcher),
	}, limiter)

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
