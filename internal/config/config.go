package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jengzang/lorg-backend-go/internal/novelty"
)

// Config 应用配置
type Config struct {
	Port        string
	DatabaseURL string // postgres:// URL 或 SQLite 文件路径
	JWTSecret   string

	// 网格参数
	CellSizeDeg    float64
	SimplifyMeters float64
	GridSimplifyM  float64
	SnapDeg        float64
	NeighborRadius int
	VisitedCellCap int

	// Strava
	StravaAPIBase    string
	AnnotateDryRun   bool
	StravaFixtureDir string

	// 限流
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load 加载配置。.env.local 和 .env 中的值不会覆盖已有的环境变量
func Load() *Config {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err == nil {
			log.Printf("[config] loaded %s", f)
		}
	}

	port := getString("PORT", ":8080")
	if !strings.Contains(port, ":") {
		port = ":" + port
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = getString("DB_PATH", "./data/lorg/lorg.db")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
		log.Printf("[config] JWT_SECRET not set, using development default")
	}

	cellSize := getFloat("CELL_GRID_DEG", 0)
	if cellSize <= 0 {
		cellSize = getFloat("CELL_SIZE_DEG", novelty.DefaultCellSizeDeg)
	}

	return &Config{
		Port:             port,
		DatabaseURL:      dbURL,
		JWTSecret:        jwtSecret,
		CellSizeDeg:      cellSize,
		SimplifyMeters:   getFloat("SIMPLIFY_M", novelty.DefaultSimplifyMeters),
		GridSimplifyM:    getFloat("GRID_SIMPLIFY_M", 0),
		SnapDeg:          getFloat("SNAP_GRID_DEG", 0),
		NeighborRadius:   getInt("CELL_NEIGHBOR_RADIUS", novelty.DefaultNeighborRadius),
		VisitedCellCap:   getInt("VISITED_CELL_LIMIT", 10000),
		StravaAPIBase:    getString("STRAVA_API_BASE", "https://www.strava.com/api/v3"),
		AnnotateDryRun:   getBool("STRAVA_ANNOTATE_DRYRUN", false),
		StravaFixtureDir: os.Getenv("STRAVA_FIXTURES"),
		RateLimitRPS:     getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:   getInt("RATE_LIMIT_BURST", 20),
	}
}

// NoveltyParams 返回网格引擎参数。GRID_SIMPLIFY_M 优先于 SIMPLIFY_M
func (c *Config) NoveltyParams() novelty.Params {
	simplify := c.SimplifyMeters
	if c.GridSimplifyM > 0 {
		simplify = c.GridSimplifyM
	}
	return novelty.Params{
		CellSizeDeg:    c.CellSizeDeg,
		SnapDeg:        c.SnapDeg,
		SimplifyMeters: simplify,
		NeighborRadius: c.NeighborRadius,
	}.Normalize()
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}
