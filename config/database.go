package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db          *gorm.DB
	historianDb *gorm.DB
)

// GetDB returns the metrics database (Postgres). Snapshots, safety events,
// daily summaries, assets and users live here.
func GetDB() *gorm.DB {
	return db
}

// GetHistorianDB returns the plant-historian source database (MySQL).
// This connection is read-only; the guard plugin rejects any write.
func GetHistorianDB() *gorm.DB {
	return historianDb
}

func init() {
	// Load env from .env
	godotenv.Load()
	// IMPORTANT (Cloud Run):
	// Do NOT block startup in init() waiting for DB.
	// Cloud Run requires the container to start listening on $PORT quickly.
}

// ConnectDatabaseWithRetry connects the metrics database and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			os.Getenv("DB_HOST"),
			envOrDefault("DB_PORT", "5432"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			envOrDefault("DB_SSLMODE", "require"),
		)
	}

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(postgres.Open(dsn), initConfig())
		if err == nil {
			// Tune database/sql pool for hosted Postgres / production.
			// Env overrides (optional):
			// - DB_MAX_OPEN_CONNS (default 50)
			// - DB_MAX_IDLE_CONNS (default 25)
			// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
			// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50)
				maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25)
				connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
				connMaxIdle := time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

				if maxOpen > 0 {
					sqlDB.SetMaxOpenConns(maxOpen)
				}
				if maxIdle >= 0 {
					sqlDB.SetMaxIdleConns(maxIdle)
				}
				if connMaxLife > 0 {
					sqlDB.SetConnMaxLifetime(connMaxLife)
				}
				if connMaxIdle > 0 {
					sqlDB.SetConnMaxIdleTime(connMaxIdle)
				}
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to metrics database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect metrics database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// ConnectHistorianWithRetry connects the plant-historian source database.
// The DSN must use a read-only credential; on top of that the read-only
// guard plugin rejects any write statement issued through this handle.
// Call this from main() AFTER the HTTP server is listening.
func ConnectHistorianWithRetry() {
	dsn := strings.TrimSpace(os.Getenv("HISTORIAN_DSN"))
	if dsn == "" {
		host := os.Getenv("HISTORIAN_HOST")
		network := "tcp"
		address := fmt.Sprintf("%s:%s", host, envOrDefault("HISTORIAN_PORT", "3306"))
		// Cloud SQL Auth Proxy exposes a unix socket under /cloudsql/.
		if strings.HasPrefix(host, "/cloudsql/") {
			network = "unix"
			address = host
		}
		dsn = fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true",
			os.Getenv("HISTORIAN_USER"),
			os.Getenv("HISTORIAN_PASSWORD"),
			network,
			address,
			os.Getenv("HISTORIAN_DB_NAME"),
		)
	}

	var attempt int
	for {
		attempt++
		var err error
		historianDb, err = gorm.Open(mysql.Open(dsn), initConfig())
		if err == nil {
			if sqlDB, derr := historianDb.DB(); derr == nil && sqlDB != nil {
				sqlDB.SetMaxOpenConns(intFromEnv("HISTORIAN_MAX_OPEN_CONNS", 10))
				sqlDB.SetMaxIdleConns(intFromEnv("HISTORIAN_MAX_IDLE_CONNS", 5))
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}
			if pluginErr := historianDb.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("historian connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := historianDb.Use(NewReadOnlyGuardPlugin()); pluginErr != nil {
				log.Printf("historian connected but failed to install read-only guard plugin: %v", pluginErr)
			}
			log.Printf("connected to historian database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect historian database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// InitConfig Initialize Config
func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
	return newLogger
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
