package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/milanbella/sa-oauth/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

const (
	defaultDBDriver          = DriverMySQL
	defaultDBHost            = "127.0.0.1"
	defaultDBPort            = 3306
	defaultDBUser            = "sa_auth"
	defaultDBPassword        = ""
	defaultDBName            = "sa_auth"
	defaultDBSQLitePath      = "sa_auth.db"
	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = time.Minute * 15
	defaultDBPingTimeout     = 5 * time.Second

	defaultAuthLoginPath   = "/login"
	defaultAccessTokenTTL  = 10 * time.Minute
	defaultRefreshTokenTTL = time.Hour
	defaultCodeTTL         = 10 * time.Minute
	defaultBcryptCost      = 10

	defaultHTTPAddr  = ":8080"
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
)

type Config struct {
	Database DBConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

type DBConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type AuthConfig struct {
	LoginPath       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CodeTTL         time.Duration
	BcryptCost      int
}

type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. When configFile is not
// empty it is read first and environment variables override its values.
func Load(configFile string) (*Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, logger.LogErr(fmt.Errorf("read config file %s: %w", configFile, err))
		}
	}

	dbCfg, err := loadDBConfig(v)
	if err != nil {
		return nil, logger.LogErr(err)
	}

	authCfg, err := loadAuthConfig(v)
	if err != nil {
		return nil, logger.LogErr(err)
	}

	httpAddr := strings.TrimSpace(v.GetString("HTTP_ADDR"))
	if httpAddr == "" {
		return nil, logger.LogError("HTTP_ADDR must not be empty")
	}

	return &Config{
		Database: *dbCfg,
		Auth:     *authCfg,
		HTTP:     HTTPConfig{Addr: httpAddr},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DB_DRIVER", defaultDBDriver)
	v.SetDefault("DB_HOST", defaultDBHost)
	v.SetDefault("DB_PORT", defaultDBPort)
	v.SetDefault("DB_USER", defaultDBUser)
	v.SetDefault("DB_PASSWORD", defaultDBPassword)
	v.SetDefault("DB_NAME", defaultDBName)
	v.SetDefault("DB_SQLITE_PATH", defaultDBSQLitePath)
	v.SetDefault("DB_MAX_OPEN_CONNS", defaultDBMaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", defaultDBMaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime.String())
	v.SetDefault("DB_PING_TIMEOUT", defaultDBPingTimeout.String())

	v.SetDefault("AUTH_LOGIN_PATH", defaultAuthLoginPath)
	v.SetDefault("AUTH_ACCESS_TOKEN_TTL", defaultAccessTokenTTL.String())
	v.SetDefault("AUTH_REFRESH_TOKEN_TTL", defaultRefreshTokenTTL.String())
	v.SetDefault("AUTH_CODE_TTL", defaultCodeTTL.String())
	v.SetDefault("AUTH_BCRYPT_COST", defaultBcryptCost)

	v.SetDefault("HTTP_ADDR", defaultHTTPAddr)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", defaultLogFormat)

	return v
}

func loadDBConfig(v *viper.Viper) (*DBConfig, error) {
	driver := strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER")))
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q", DriverMySQL, DriverSQLite)
	}

	port, err := getInt(v, "DB_PORT")
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := getInt(v, "DB_MAX_OPEN_CONNS")
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := getInt(v, "DB_MAX_IDLE_CONNS")
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := getDuration(v, "DB_CONN_MAX_LIFETIME")
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	pingTimeout, err := getDuration(v, "DB_PING_TIMEOUT")
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PING_TIMEOUT: %w", err)
	}

	if port <= 0 || port > 65535 {
		return nil, errors.New("DB_PORT must be between 1 and 65535")
	}

	if maxOpenConns <= 0 {
		return nil, errors.New("DB_MAX_OPEN_CONNS must be greater than zero")
	}

	if maxIdleConns < 0 {
		return nil, errors.New("DB_MAX_IDLE_CONNS must be zero or a positive integer")
	}

	if connMaxLifetime < 0 {
		return nil, errors.New("DB_CONN_MAX_LIFETIME must be zero or a positive duration")
	}

	if pingTimeout <= 0 {
		return nil, errors.New("DB_PING_TIMEOUT must be greater than zero")
	}

	sqlitePath := strings.TrimSpace(v.GetString("DB_SQLITE_PATH"))
	if driver == DriverSQLite && sqlitePath == "" {
		return nil, errors.New("DB_SQLITE_PATH must not be empty when DB_DRIVER is sqlite")
	}

	return &DBConfig{
		Driver:          driver,
		Host:            v.GetString("DB_HOST"),
		Port:            port,
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SQLitePath:      sqlitePath,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		PingTimeout:     pingTimeout,
	}, nil
}

func loadAuthConfig(v *viper.Viper) (*AuthConfig, error) {
	loginPath := strings.TrimSpace(v.GetString("AUTH_LOGIN_PATH"))
	if loginPath == "" {
		return nil, errors.New("AUTH_LOGIN_PATH must not be empty")
	}
	if strings.HasPrefix(loginPath, "http://") || strings.HasPrefix(loginPath, "https://") {
		return nil, errors.New("AUTH_LOGIN_PATH must be relative")
	}
	if !strings.HasPrefix(loginPath, "/") {
		loginPath = "/" + loginPath
	}

	accessTTL, err := getDuration(v, "AUTH_ACCESS_TOKEN_TTL")
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_ACCESS_TOKEN_TTL: %w", err)
	}
	if accessTTL <= 0 {
		return nil, errors.New("AUTH_ACCESS_TOKEN_TTL must be greater than zero")
	}

	refreshTTL, err := getDuration(v, "AUTH_REFRESH_TOKEN_TTL")
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_REFRESH_TOKEN_TTL: %w", err)
	}
	if refreshTTL <= 0 {
		return nil, errors.New("AUTH_REFRESH_TOKEN_TTL must be greater than zero")
	}

	codeTTL, err := getDuration(v, "AUTH_CODE_TTL")
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_CODE_TTL: %w", err)
	}
	if codeTTL <= 0 {
		return nil, errors.New("AUTH_CODE_TTL must be greater than zero")
	}

	cost, err := getInt(v, "AUTH_BCRYPT_COST")
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_BCRYPT_COST: %w", err)
	}
	if cost < 4 || cost > 31 {
		return nil, errors.New("AUTH_BCRYPT_COST must be between 4 and 31")
	}

	return &AuthConfig{
		LoginPath:       loginPath,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		CodeTTL:         codeTTL,
		BcryptCost:      cost,
	}, nil
}

// viper's GetInt and GetDuration swallow parse errors and return zero, which
// would turn a typo into a misleading range error.
func getInt(v *viper.Viper, key string) (int, error) {
	return cast.ToIntE(v.Get(key))
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	return cast.ToDurationE(v.Get(key))
}
