package config

import (
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	// DefaultCacheLimit is the ceiling on total cached source bytes.
	DefaultCacheLimit = 500 << 20 // 500 MiB

	defaultDataDir = ".quire"
)

// Config holds the engine configuration loaded from the environment.
type Config struct {
	// DataDir is the root directory for the cache payloads, the
	// metadata database and decoded page scratch files.
	DataDir string
	// CacheLimit is the byte ceiling for the source cache.
	CacheLimit int64
	// DBType selects the metadata database driver: sqlite or postgres.
	DBType string
	// DBURL is the postgres DSN, used only when DBType is postgres.
	DBURL string
	// RedisAddr, when set, switches the byte cache to redis.
	RedisAddr string
	// HTTPPort is the port for the local HTTP surface.
	HTTPPort string
}

// LoadConfig reads the configuration from the environment. A .env file
// in the working directory is loaded automatically.
func LoadConfig() Config {
	cnf := Config{
		DataDir:    envOr("QUIRE_DATA_DIR", defaultDataDir),
		CacheLimit: DefaultCacheLimit,
		DBType:     envOr("QUIRE_DB_TYPE", "sqlite"),
		DBURL:      os.Getenv("QUIRE_DB_URL"),
		RedisAddr:  os.Getenv("QUIRE_REDIS_ADDR"),
		HTTPPort:   envOr("QUIRE_HTTP_PORT", "4810"),
	}

	if limit := os.Getenv("QUIRE_CACHE_LIMIT"); limit != "" {
		n, err := strconv.ParseInt(limit, 10, 64)
		if err != nil || n <= 0 {
			logrus.Warnf("ignoring invalid QUIRE_CACHE_LIMIT %q", limit)
		} else {
			cnf.CacheLimit = n
		}
	}

	return cnf
}

// GetDb opens the metadata database for the given config.
func GetDb(cnf Config) *gorm.DB {
	switch cnf.DBType {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cnf.DBURL), &gorm.Config{})
		if err != nil {
			logrus.Fatalf("error connecting to postgres: %v", err)
		}
		return db
	default:
		if err := os.MkdirAll(cnf.DataDir, os.ModePerm); err != nil {
			logrus.Fatalf("error creating data dir: %v", err)
		}
		db, err := gorm.Open(sqlite.Open(filepath.Join(cnf.DataDir, "quire.db")), &gorm.Config{})
		if err != nil {
			logrus.Fatalf("error opening sqlite db: %v", err)
		}
		return db
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
