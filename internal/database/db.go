package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"merchcheck-backend/internal/config"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open connects to PostgreSQL when DATABASE_URL is set and to the SQLite file at
// SQLITE_PATH otherwise. The choice is made here only; nothing else in the
// application branches on the backend.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.Production() {
		dsn, err := postgresDSN(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewLogger(log.Default()), TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.Production() {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// one writer keeps SQLite free of SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
	}

	log.WithPrefix("db").Info("Database connected", "driver", dialector.Name())
	return db, nil
}

// OpenSQLite opens an SQLite database from a raw DSN with foreign keys enabled.
func OpenSQLite(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

// postgresDSN requires TLS unless the URL already states an sslmode.
func postgresDSN(raw string) (string, error) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", "require")
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}
	if strings.Contains(raw, "sslmode=") {
		return raw, nil
	}
	return raw + " sslmode=require", nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a LIKE pattern matching s anywhere, for use with
// "LOWER(col) LIKE LOWER(?) ESCAPE '\'".
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
