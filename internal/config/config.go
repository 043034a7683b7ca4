package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "REPAIR"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	SQLite      SQLiteConfig      `mapstructure:"sqlite"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Repository  RepositoryConfig  `mapstructure:"repository"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Portal      PortalConfig      `mapstructure:"portal"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Invoice     InvoiceConfig     `mapstructure:"invoice"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	CORS        CORSConfig        `mapstructure:"cors"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // inmemory, postgres or sqlite
}

// BillingConfig seeds the stored settings on first start.
type BillingConfig struct {
	DefaultHourlyRate float64 `mapstructure:"default_hourly_rate"`
	Currency          string  `mapstructure:"currency"`
	BusinessName      string  `mapstructure:"business_name"`
}

type PortalConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type BackupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Dir      string        `mapstructure:"dir"`
	Keep     int           `mapstructure:"keep"`
	S3       S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type InvoiceConfig struct {
	Dir string `mapstructure:"dir"`
}

type AttachmentsConfig struct {
	Dir string `mapstructure:"dir"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)

	v.SetDefault("sqlite.path", "repair.db")
	v.SetDefault("logging.development", false)
	v.SetDefault("repository.type", "inmemory")

	v.SetDefault("billing.default_hourly_rate", 0.0)
	v.SetDefault("billing.currency", "USD")
	v.SetDefault("billing.business_name", "Repair Shop")

	v.SetDefault("portal.secret", "")
	v.SetDefault("portal.token_ttl", 30*24*time.Hour)

	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.interval", 6*time.Hour)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 10)
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.prefix", "repair-tracker/")

	v.SetDefault("invoice.dir", "")
	v.SetDefault("attachments.dir", "")
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load reads configuration in increasing priority: defaults, config file,
// .env and process environment (REPAIR_ prefix), command-line flags.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("repair-tracker", pflag.ContinueOnError)
	configFile := flags.String("config", "config.yml", "path to the YAML config file")
	envFile := flags.String("env-file", ".env", "path to a dotenv file")
	flags.String("port", "", "HTTP port")
	flags.String("repository", "", "storage backend: inmemory, postgres or sqlite")
	flags.Bool("dev", false, "development logging")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(*configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", *configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.port":         "port",
		"repository.type":     "repository",
		"logging.development": "dev",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres repository")
		}
	default:
		return fmt.Errorf("unknown repository type %q", c.Repository.Type)
	}
	if c.Server.RateLimit < 1 {
		return errors.New("server.rate_limit must be positive")
	}
	if c.Backup.Enabled {
		if c.Backup.Interval <= 0 {
			return errors.New("backup.interval must be positive")
		}
		if c.Backup.Dir == "" && c.Backup.S3.Bucket == "" {
			return errors.New("backup needs backup.dir or backup.s3.bucket")
		}
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
