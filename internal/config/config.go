package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8000
	defaultEnv        = "development"
	defaultTimezone   = "UTC"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	StorageLocal = "local"
	StorageS3    = "s3"

	defaultDBDriver   = DriverSQLite
	defaultSQLitePath = "portal.db"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "portal"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultMailFrom         = "webmaster@localhost"
	defaultSMTPHost         = "localhost"
	defaultSMTPPort         = 25
	defaultSendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

	defaultMaxUploads       = 4
	defaultMaxUploadMB      = 64
	defaultSnapshotInterval = 24 * time.Hour
	defaultSnapshotKeep     = 7

	EnvSendGridAPIKey   = "SENDGRID_API_KEY"
	EnvSMTPDebugLevel   = "SMTP_DEBUG_LEVEL"
	EnvDefaultFromEmail = "DEFAULT_FROM_EMAIL"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Timezone       string                `yaml:"timezone"`
	JWTSecret      string                `yaml:"jwt_secret"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Mail           MailRuntimeConfig     `yaml:"mail"`
	Storage        StorageRuntimeConfig  `yaml:"storage"`
	Snapshot       SnapshotRuntimeConfig `yaml:"snapshot"`
	Paths          RuntimePathsConfig    `yaml:"paths"`

	// DSN and RedisURL are derived from the sections above.
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // "sqlite" | "mysql"
	Path      string            `yaml:"path"`   // sqlite file
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	Enable   bool   `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type MailRuntimeConfig struct {
	From           string                `yaml:"from"`
	SMTP           SMTPRuntimeConfig     `yaml:"smtp"`
	SMTPDebugLevel int                   `yaml:"smtp_debug_level"`
	SendGrid       SendGridRuntimeConfig `yaml:"sendgrid"`
}

type SMTPRuntimeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type SendGridRuntimeConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// FallbackEnabled reports whether the HTTP fallback transport is configured.
func (m MailRuntimeConfig) FallbackEnabled() bool {
	return strings.TrimSpace(m.SendGrid.APIKey) != ""
}

type StorageRuntimeConfig struct {
	Driver               string          `yaml:"driver"` // "local" | "s3"
	MaxConcurrentUploads int             `yaml:"max_concurrent_uploads"`
	MaxUploadMB          int             `yaml:"max_upload_mb"`
	S3                   S3RuntimeConfig `yaml:"s3"`
}

type S3RuntimeConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

type SnapshotRuntimeConfig struct {
	Enable   bool          `yaml:"enable"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
}

type RuntimePathsConfig struct {
	Logs      string `yaml:"logs"`
	Uploads   string `yaml:"uploads"`
	Snapshots string `yaml:"snapshots"`
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	Env                string            `yaml:"env"`
	Timezone           string            `yaml:"timezone"`
	TimeZone           string            `yaml:"time_zone"`
	JWTSecret          string            `yaml:"jwt_secret"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	Mail               rawMailConfig     `yaml:"mail"`
	Storage            rawStorageConfig  `yaml:"storage"`
	Snapshot           rawSnapshotConfig `yaml:"snapshot"`
	Paths              rawPathsConfig    `yaml:"paths"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	Path      string            `yaml:"path"`
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	Enable   *bool  `yaml:"enable"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawMailConfig struct {
	From           string `yaml:"from"`
	SMTPDebugLevel *int   `yaml:"smtp_debug_level"`
	SMTP           struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"smtp"`
	SendGrid struct {
		APIKey   string `yaml:"api_key"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"sendgrid"`
}

type rawStorageConfig struct {
	Driver               string `yaml:"driver"`
	MaxConcurrentUploads int    `yaml:"max_concurrent_uploads"`
	MaxUploadMB          int    `yaml:"max_upload_mb"`
	S3                   struct {
		Endpoint        string `yaml:"endpoint"`
		Bucket          string `yaml:"bucket"`
		Region          string `yaml:"region"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		PathStyle       *bool  `yaml:"path_style"`
		Prefix          string `yaml:"prefix"`
	} `yaml:"s3"`
}

type rawSnapshotConfig struct {
	Enable   *bool  `yaml:"enable"`
	Interval string `yaml:"interval"`
	Keep     *int   `yaml:"keep"`
}

type rawPathsConfig struct {
	Logs      string `yaml:"logs"`
	Uploads   string `yaml:"uploads"`
	Snapshots string `yaml:"snapshots"`
}

// Load reads the YAML file at configPath. A missing file is an error.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults, applies environment
// overrides and validates the result.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverMySQL:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
	default:
		return fmt.Errorf("invalid database.driver %q, expected sqlite or mysql", c.Database.Driver)
	}
	if c.Redis.Enable && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.Mail.SMTP.Port < 1 || c.Mail.SMTP.Port > 65535 {
		return fmt.Errorf("invalid mail.smtp.port %d, expected 1-65535", c.Mail.SMTP.Port)
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q, expected local or s3", c.Storage.Driver)
	}
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("invalid snapshot.interval %s", c.Snapshot.Interval)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		Timezone: defaultTimezone,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Path:      defaultSQLitePath,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Mail: MailRuntimeConfig{
			From: defaultMailFrom,
			SMTP: SMTPRuntimeConfig{
				Host: defaultSMTPHost,
				Port: defaultSMTPPort,
			},
			SendGrid: SendGridRuntimeConfig{Endpoint: defaultSendGridEndpoint},
		},
		Storage: StorageRuntimeConfig{
			Driver:               StorageLocal,
			MaxConcurrentUploads: defaultMaxUploads,
			MaxUploadMB:          defaultMaxUploadMB,
		},
		Snapshot: SnapshotRuntimeConfig{
			Interval: defaultSnapshotInterval,
			Keep:     defaultSnapshotKeep,
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TimeZone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw.Database)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw.Redis)
	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)
	cfg.Storage = applyRawStorageConfig(cfg.Storage, raw.Storage)

	if raw.Snapshot.Enable != nil {
		cfg.Snapshot.Enable = *raw.Snapshot.Enable
	}
	if v := strings.TrimSpace(raw.Snapshot.Interval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid snapshot.interval %q: %w", v, err)
		}
		cfg.Snapshot.Interval = d
	}
	if raw.Snapshot.Keep != nil {
		cfg.Snapshot.Keep = *raw.Snapshot.Keep
	}

	cfg.Paths = normalizeRuntimePaths(RuntimePathsConfig{
		Logs:      raw.Paths.Logs,
		Uploads:   raw.Paths.Uploads,
		Snapshots: raw.Paths.Snapshots,
	})
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.DSN = cfg.Database.DSNValue()
	if cfg.Redis.Enable {
		cfg.RedisURL = cfg.Redis.URLValue()
	}
	return nil
}

func applyRawDatabaseConfig(cfg DatabaseRuntimeConfig, raw rawDatabaseConfig) DatabaseRuntimeConfig {
	if v := strings.TrimSpace(raw.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(raw.Path); v != "" {
		cfg.Path = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.ParseTime != nil {
		cfg.ParseTime = *raw.ParseTime
	}
	if v := strings.TrimSpace(raw.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Params != nil {
		cfg.Params = copyStringMap(raw.Params)
	}
	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(cfg RedisRuntimeConfig, raw rawRedisConfig) RedisRuntimeConfig {
	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.URL = v
		cfg.Enable = true
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
		cfg.Enable = true
	}
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if raw.DB != nil {
		cfg.DB = *raw.DB
	}
	if raw.TLS != nil {
		cfg.TLS = *raw.TLS
	}
	return normalizeRedisConfig(cfg)
}

func applyRawMailConfig(cfg MailRuntimeConfig, raw rawMailConfig) MailRuntimeConfig {
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if raw.SMTPDebugLevel != nil {
		cfg.SMTPDebugLevel = *raw.SMTPDebugLevel
	}
	if v := strings.TrimSpace(raw.SMTP.Host); v != "" {
		cfg.SMTP.Host = v
	}
	if raw.SMTP.Port != 0 {
		cfg.SMTP.Port = raw.SMTP.Port
	}
	if v := strings.TrimSpace(raw.SMTP.User); v != "" {
		cfg.SMTP.User = v
	}
	if v := raw.SMTP.Pass; v != "" {
		cfg.SMTP.Pass = v
	}
	if v := strings.TrimSpace(raw.SendGrid.APIKey); v != "" {
		cfg.SendGrid.APIKey = v
	}
	if v := strings.TrimSpace(raw.SendGrid.Endpoint); v != "" {
		cfg.SendGrid.Endpoint = v
	}
	return cfg
}

func applyRawStorageConfig(cfg StorageRuntimeConfig, raw rawStorageConfig) StorageRuntimeConfig {
	if v := strings.ToLower(strings.TrimSpace(raw.Driver)); v != "" {
		cfg.Driver = v
	}
	if raw.MaxConcurrentUploads > 0 {
		cfg.MaxConcurrentUploads = raw.MaxConcurrentUploads
	}
	if raw.MaxUploadMB > 0 {
		cfg.MaxUploadMB = raw.MaxUploadMB
	}
	s3 := raw.S3
	if v := strings.TrimSpace(s3.Endpoint); v != "" {
		cfg.S3.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(s3.Bucket); v != "" {
		cfg.S3.Bucket = v
	}
	if v := strings.TrimSpace(s3.Region); v != "" {
		cfg.S3.Region = v
	}
	if v := strings.TrimSpace(s3.AccessKeyID); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := strings.TrimSpace(s3.SecretAccessKey); v != "" {
		cfg.S3.SecretAccessKey = v
	}
	if s3.PathStyle != nil {
		cfg.S3.PathStyle = *s3.PathStyle
	} else if cfg.S3.Endpoint != "" {
		cfg.S3.PathStyle = true
	}
	if v := strings.Trim(strings.TrimSpace(s3.Prefix), "/"); v != "" {
		cfg.S3.Prefix = v
	}
	return cfg
}

// applyEnvOverrides lets deployment secrets live outside the YAML file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvSendGridAPIKey)); v != "" {
		cfg.Mail.SendGrid.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDefaultFromEmail)); v != "" {
		cfg.Mail.From = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPDebugLevel)); v != "" {
		if level, err := strconv.Atoi(v); err == nil {
			cfg.Mail.SMTPDebugLevel = level
		}
	}
}

// IsDev returns true when running in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" || c.Env == "dev" }

// LogDir returns the resolved log directory.
func (c *AppConfig) LogDir() string { return ResolveRuntimePath(c.Paths.Logs, "logs") }

// UploadDir returns the resolved directory for locally stored files.
func (c *AppConfig) UploadDir() string { return ResolveRuntimePath(c.Paths.Uploads, "uploads") }

// SnapshotDir returns the resolved directory for snapshot archives.
func (c *AppConfig) SnapshotDir() string {
	return ResolveRuntimePath(c.Paths.Snapshots, "snapshots")
}

// MaxUploadBytes is the largest accepted multipart upload.
func (c *AppConfig) MaxUploadBytes() int64 { return int64(c.Storage.MaxUploadMB) << 20 }
