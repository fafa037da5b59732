package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// MySQL接続設定
	DBDSN             string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// サーバー設定
	ServerPort      string
	Env             string
	StaticDir       string
	MetricsEnabled  bool
	ShutdownTimeout time.Duration

	// CORS設定
	AllowedOrigins []string
}

var defaults = map[string]any{
	"db_dsn":               "",
	"db_host":              "localhost",
	"db_port":              "3306",
	"db_user":              "",
	"db_password":          "",
	"db_name":              "fridge_door",
	"db_max_open_conns":    25,
	"db_max_idle_conns":    25,
	"db_conn_max_lifetime": 5 * time.Minute,
	"server_port":          "8080",
	"env":                  "development",
	"static_dir":           "./static",
	"metrics_enabled":      true,
	"shutdown_timeout":     10 * time.Second,
	"allowed_origins":      "*",
}

// Load loads configuration from defaults, an optional config.yaml and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		DBDSN:             v.GetString("db_dsn"),
		DBHost:            v.GetString("db_host"),
		DBPort:            v.GetString("db_port"),
		DBUser:            v.GetString("db_user"),
		DBPassword:        v.GetString("db_password"),
		DBName:            v.GetString("db_name"),
		DBMaxOpenConns:    v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:    v.GetInt("db_max_idle_conns"),
		DBConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		ServerPort:        v.GetString("server_port"),
		Env:               v.GetString("env"),
		StaticDir:         v.GetString("static_dir"),
		MetricsEnabled:    v.GetBool("metrics_enabled"),
		ShutdownTimeout:   v.GetDuration("shutdown_timeout"),
	}

	origins, err := loadOrigins(v)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = origins

	return cfg, nil
}

// loadOrigins accepts ALLOWED_ORIGINS as a comma-separated string (env) or as
// a YAML list. An empty string means "*"; an empty list is an error.
func loadOrigins(v *viper.Viper) ([]string, error) {
	switch raw := v.Get("allowed_origins").(type) {
	case string:
		origins := splitOrigins(raw)
		if len(origins) == 0 {
			return []string{"*"}, nil
		}
		return origins, nil
	case []any, []string:
		var origins []string
		for _, item := range v.GetStringSlice("allowed_origins") {
			origins = append(origins, splitOrigins(item)...)
		}
		if len(origins) == 0 {
			return nil, errors.New("allowed_origins: list has no origins")
		}
		return origins, nil
	default:
		return nil, fmt.Errorf("allowed_origins: expected a string or a list, got %T", raw)
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AllowsAnyOrigin reports whether the CORS policy should accept every origin.
// An empty list allows none.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// DSN returns the MySQL data source name. An explicit DB_DSN wins over the
// individual DB_* parts; parseTime is always enabled.
func (c Config) DSN() (string, error) {
	if c.DBDSN != "" {
		mc, err := mysql.ParseDSN(c.DBDSN)
		if err != nil {
			return "", fmt.Errorf("invalid DB_DSN: %w", err)
		}
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	}

	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPassword
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}
