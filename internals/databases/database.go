package database

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"playhost_backend/internals/configs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var DB *gorm.DB

func ConnectDB() {
	log.Println("Connecting to PostgreSQL...")

	dsn := DSN()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: dsn,
		// Simple protocol plays well with PgBouncer transaction pooling.
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: configs.NewGormLogger(),
	})
	if err != nil {
		log.Fatalf("DB connect failed: %v", err)
	}
	DB = db
	log.Println("DB connected.")
}

// DSN builds the URL-form DSN from DB_* env vars.
func DSN() string {
	sslmode := getenv("DB_SSLMODE", "require")
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=playhost&options=-c statement_timeout=3000",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
		sslmode,
	)
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

// RunMigrations applies the embedded SQL migrations. ErrNoChange is fine;
// anything else aborts startup because the schema is wrong.
func RunMigrations() {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		log.Fatalf("migrations source err: %v", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DSN())
	if err != nil {
		log.Fatalf("migrate init err: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate up err: %v", err)
	}
	log.Println("Migrations applied.")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
