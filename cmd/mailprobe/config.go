package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/optimode/mailprobe/directory"
)

// config is the file and environment side of the CLI configuration.
// Command-line flags override whatever is loaded here.
type config struct {
	// DB is the directory DSN. postgres://… (or key=value form) selects
	// PostgreSQL; anything else is treated as a SQLite path.
	DB string `yaml:"db"`
	// Key enables AES decryption of stored credentials.
	Key string `yaml:"key"`
	// Upstream pins MX queries to one DNS server, host[:port].
	Upstream string `yaml:"upstream"`
	// Redis is a redis URL; when set, resolution and reachability
	// caches are shared server-side.
	Redis string `yaml:"redis"`
	// Sender is the MAIL FROM address for delivery attempts.
	Sender string `yaml:"sender"`
	// Timeout bounds each network attempt.
	Timeout time.Duration `yaml:"timeout"`
	// Debug switches development logging on.
	Debug bool `yaml:"debug"`
}

// loadConfig loads a config from a file. If filePath is empty, it
// searches the working directory for a file named "mailprobe". A .env
// file feeds the MAILPROBE_* variables consulted afterwards.
func loadConfig(filePath string) (*config, error) {
	_ = godotenv.Load()

	v := viper.New()
	explicit := filePath != ""
	if explicit {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("mailprobe")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment wins over the file for deployment-shaped values.
	if s := os.Getenv("MAILPROBE_DB"); s != "" {
		cfg.DB = s
	}
	if s := os.Getenv("MAILPROBE_KEY"); s != "" {
		cfg.Key = s
	}
	if s := os.Getenv("MAILPROBE_UPSTREAM"); s != "" {
		cfg.Upstream = s
	}
	if s := os.Getenv("MAILPROBE_REDIS"); s != "" {
		cfg.Redis = s
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

// openDirectory connects to the route directory named by cfg.DB and
// wraps it in a Store. The returned cleanup closes the connection pool.
func openDirectory(cfg *config, logger *zap.Logger) (*directory.Store, func(), error) {
	db, err := openDB(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	var dec directory.Decrypter = directory.Plaintext{}
	if cfg.Key != "" {
		aes, err := directory.NewAES([]byte(cfg.Key))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		dec = aes
	}

	store, err := directory.NewStore(db, directory.StoreOptions{
		Decrypter: dec,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

// isPostgresDSN distinguishes PostgreSQL DSNs from SQLite paths.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func openDB(dsn string) (*gorm.DB, error) {
	dialector := sqlite.Open(dsn)
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	return db, nil
}
