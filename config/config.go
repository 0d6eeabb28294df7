// Package config loads the settings shared by the wallet CLI and the sandbox
// server from an optional YAML file and HPW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override; nested keys join with
// underscores, so client.base_url is HPW_CLIENT_BASE_URL.
const EnvPrefix = "HPW"

// Config is the whole configuration tree. The wallet CLI reads Client,
// Credentials, Redis and Log; the sandbox server reads the rest.
type Config struct {
	Client      ClientConfig      `mapstructure:"client"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Sandbox     SandboxConfig     `mapstructure:"sandbox"`
	Log         LogConfig         `mapstructure:"log"`
}

type ClientConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CredentialsConfig says where the session tokens are kept between runs.
type CredentialsConfig struct {
	Backend        string        `mapstructure:"backend"` // file, redis, memory
	Path           string        `mapstructure:"path"`
	KeyPath        string        `mapstructure:"key_path"`
	Key            string        `mapstructure:"key"` // 64 hex chars; wins over key_path
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	InstallationID string        `mapstructure:"installation_id"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders a postgres:// URL, escaping the credentials.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

// SandboxConfig holds the business knobs of the sandbox backend.
type SandboxConfig struct {
	Currency       string          `mapstructure:"currency"`
	InitialBalance decimal.Decimal `mapstructure:"initial_balance"`
	LinkBaseURL    string          `mapstructure:"link_base_url"`
	QRTTL          time.Duration   `mapstructure:"qr_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"` // console output for local runs
}

var defaults = map[string]any{
	"client.base_url":   "https://portal.beta.healthpay.tech/api/v1/",
	"client.timeout":    "30s",
	"client.user_agent": "healthpay-wallet/1.0",

	"credentials.backend":         "file",
	"credentials.path":            "~/.healthpay/credentials.json",
	"credentials.key_path":        "~/.healthpay/credentials.key",
	"credentials.key":             "",
	"credentials.token_ttl":       "1h",
	"credentials.installation_id": "default",

	"server.host": "0.0.0.0",
	"server.port": 8080,
	"server.mode": "debug",

	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.dbname":            "healthpay_wallet",
	"database.sslmode":           "disable",
	"database.max_conns":         20,
	"database.min_conns":         5,
	"database.conn_max_lifetime": "30m",

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":      "",
	"jwt.access_ttl":  "15m",
	"jwt.refresh_ttl": "720h",
	"jwt.issuer":      "healthpay-sandbox",

	"sandbox.currency":        "EGP",
	"sandbox.initial_balance": "1000",
	"sandbox.link_base_url":   "https://portal.beta.healthpay.tech/pay/",
	"sandbox.qr_ttl":          "15m",

	"log.level":  "info",
	"log.pretty": false,
}

// Load reads path, or ./config.yaml and ./config/config.yaml when path is
// empty. A missing file is not an error; environment variables override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// ValidateClient checks what the wallet CLI needs before its first request.
func (c *Config) ValidateClient() error {
	var errs []error
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.base_url %q is not an absolute URL", c.Client.BaseURL))
	}
	switch c.Credentials.Backend {
	case "file", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("credentials.backend %q is not one of file, redis, memory", c.Credentials.Backend))
	}
	if c.Credentials.TokenTTL <= 0 {
		errs = append(errs, errors.New("credentials.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateSandbox checks what the sandbox server needs before it binds.
func (c *Config) ValidateSandbox() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, fmt.Errorf("jwt.secret must be set (%s_JWT_SECRET)", EnvPrefix))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		errs = append(errs, errors.New("jwt.refresh_ttl must outlive a positive jwt.access_ttl"))
	}
	if c.Sandbox.InitialBalance.IsNegative() {
		errs = append(errs, errors.New("sandbox.initial_balance must not be negative"))
	}
	if len(c.Sandbox.Currency) != 3 {
		errs = append(errs, fmt.Errorf("sandbox.currency %q is not an ISO 4217 code", c.Sandbox.Currency))
	}
	if c.Sandbox.QRTTL <= 0 {
		errs = append(errs, errors.New("sandbox.qr_ttl must be positive"))
	}
	return errors.Join(errs...)
}
