package config

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
)

// ConnectDB opens the MySQL store bundlerd records user operations in.
func ConnectDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = GetEnv("MYSQL_DSN")
	}
	dsn, err := withParseTime(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// withParseTime forces parseTime on so TIMESTAMP columns scan into
// time.Time instead of []byte.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
