package db

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/planyard/internal/config"
)

// DSN builds the driver-specific data source name for cfg.
func DSN(cfg config.DatabaseConfig) string {
	switch cfg.Driver {
	case config.DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	case config.DriverSQLite:
		return cfg.Path
	default:
		return mysqlConfig(cfg, cfg.Name).FormatDSN()
	}
}

func mysqlConfig(cfg config.DatabaseConfig, dbName string) *gomysql.Config {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = dbName
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc
}

func dialector(cfg config.DatabaseConfig) gorm.Dialector {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(DSN(cfg))
	case config.DriverSQLite:
		return sqlite.Open(DSN(cfg))
	default:
		return mysql.Open(DSN(cfg))
	}
}

// GormConfig is the gorm configuration shared by every connection. Duplicate
// key violations are translated to gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Connect opens a GORM connection for the configured driver and applies
// pool limits.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(cfg), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: connect %s %s: %w", cfg.Driver, describe(cfg), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// CreateDatabase creates the configured database if it does not exist. It
// connects to the server without selecting a database. SQLite creates its
// file on first open, so this is a no-op there.
func CreateDatabase(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case config.DriverSQLite:
		return nil
	case config.DriverPostgres:
		admin := cfg
		admin.Name = "postgres"
		adminDB, err := gorm.Open(postgres.Open(DSN(admin)), GormConfig())
		if err != nil {
			return fmt.Errorf("db: admin connect %s: %w", describe(cfg), err)
		}
		defer closeDB(adminDB)
		var n int64
		if err := adminDB.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", cfg.Name).Scan(&n).Error; err != nil {
			return fmt.Errorf("db: check database %s: %w", cfg.Name, err)
		}
		if n > 0 {
			return nil
		}
		if err := adminDB.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.Name)).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", cfg.Name, err)
		}
		return nil
	default:
		adminDB, err := gorm.Open(mysql.Open(mysqlConfig(cfg, "").FormatDSN()), GormConfig())
		if err != nil {
			return fmt.Errorf("db: admin connect %s: %w", describe(cfg), err)
		}
		defer closeDB(adminDB)
		if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Name)).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", cfg.Name, err)
		}
		return nil
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// describe renders the connection target without credentials.
func describe(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
}
