package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"gas-billing/internal/auth"
	"gas-billing/internal/migrations"
	"gas-billing/internal/observability/logging"
	refpostgres "gas-billing/internal/referencedata/infrastructure/postgres"
	"gas-billing/internal/referencedata/seed"
)

type config struct {
	dsn       string
	dir       string
	migrate   bool
	logLevel  string
	tokenRole string
	tokenTTL  time.Duration
	jwtSecret string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg := parseConfig()

	logger, err := logging.New(logging.Config{Level: cfg.logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.tokenRole != "" {
		token, err := auth.IssueJWT([]byte(cfg.jwtSecret), "seed-tool", auth.Role(cfg.tokenRole), cfg.tokenTTL)
		if err != nil {
			logger.Fatal("issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	if cfg.dsn == "" {
		logger.Fatal("GASBILLING_DB_DSN or -pg-dsn is required")
	}
	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if cfg.migrate {
		if err := migrations.Up(ctx, db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	loader, err := seed.NewLoader(refpostgres.NewStore(db), logger)
	if err != nil {
		logger.Fatal("seed loader", zap.Error(err))
	}
	summary, err := loader.LoadDir(ctx, cfg.dir)
	if err != nil {
		logger.Fatal("seed", zap.String("dir", cfg.dir), zap.Error(err))
	}

	files := make([]string, 0, len(summary))
	for file := range summary {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		fmt.Printf("%-28s %d rows\n", file, summary[file])
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("GASBILLING_DB_DSN", envOrDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.dir, "dir", envOrDefault("SEED_DIR", "data"), "directory with the reference CSV files")
	flag.BoolVar(&cfg.migrate, "migrate", envOrBool("SEED_MIGRATE", false), "apply migrations before seeding")
	flag.StringVar(&cfg.logLevel, "log-level", envOrDefault("GASBILLING_LOG_LEVEL", "info"), "log level")
	flag.StringVar(&cfg.tokenRole, "issue-token", "", "print a JWT for the role (viewer, operator, admin) and exit")
	flag.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued tokens")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", envOrDefault("GASBILLING_AUTH_JWT_SECRET", ""), "JWT signing secret")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
