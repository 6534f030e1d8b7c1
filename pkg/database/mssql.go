package database

import (
	"fmt"
	"net/url"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/merch-batch-api/pkg/config"
)

// NewItemMaster opens a read-only pool against the merchandising item master.
func NewItemMaster(cfg config.ItemMasterConfig) (*sqlx.DB, error) {
	query := url.Values{}
	query.Set("database", cfg.Database)
	query.Set("ApplicationIntent", "ReadOnly")
	dsn := (&url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		RawQuery: query.Encode(),
	}).String()

	db, err := sqlx.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping item master: %w", err)
	}

	return db, nil
}
