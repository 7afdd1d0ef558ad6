package store

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	URL    string // postgres://... or sqlite://path
	LogSQL bool
}

// Open picks the gorm dialector from the URL scheme.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, isSQLite, err := dialectorFor(cfg.URL)
	if err != nil {
		return nil, err
	}
	lvl := logger.Silent
	if cfg.LogSQL {
		lvl = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(log.Writer(), "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; one connection also keeps :memory: databases alive.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pgCfg, err := pgx.ParseConfig(url)
		if err != nil {
			return nil, false, fmt.Errorf("parse postgres url: %w", err)
		}
		return postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgCfg)}), false, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return nil, false, fmt.Errorf("empty sqlite path in %q", url)
		}
		if path == ":memory:" {
			return sqlite.Open(path), true, nil
		}
		return sqlite.Open("file:" + path), true, nil
	case url == ":memory:", strings.HasPrefix(url, "file:"):
		return sqlite.Open(url), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported database url %q", url)
	}
}
