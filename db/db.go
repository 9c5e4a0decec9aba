package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/milanbella/sa-oauth/config"
	"github.com/milanbella/sa-oauth/logger"
)

func New(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	driverName, dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, logger.LogErr(err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, logger.LogErr(fmt.Errorf("open %s connection: %w", cfg.Driver, err))
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY
		// between pooled connections of the same process.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, logger.LogErr(fmt.Errorf("ping %s: %w", cfg.Driver, err))
	}

	return db, nil
}

func buildDSN(cfg config.DBConfig) (string, string, error) {
	switch cfg.Driver {
	case config.DriverMySQL, "":
		return "mysql", buildMySQLDSN(cfg), nil
	case config.DriverSQLite:
		return "sqlite", buildSQLiteDSN(cfg), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func buildMySQLDSN(cfg config.DBConfig) string {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.User
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mysqlCfg.DBName = cfg.Name
	mysqlCfg.ParseTime = true
	mysqlCfg.AllowNativePasswords = true
	mysqlCfg.Params = map[string]string{
		"charset": "utf8mb4",
	}

	return mysqlCfg.FormatDSN()
}

func buildSQLiteDSN(cfg config.DBConfig) string {
	query := url.Values{}
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "journal_mode(WAL)")
	query.Set("_time_format", "sqlite")

	return "file:" + cfg.SQLitePath + "?" + query.Encode()
}
