package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Processing   ProcessingConfig   `mapstructure:"processing"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Upscale      UpscaleConfig      `mapstructure:"upscale"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	Features     FeaturesConfig     `mapstructure:"features"`
	CORS         CORSConfig         `mapstructure:"cors"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// StorageConfig selects where uploads and results live. Backend is "local" or "sftp".
type StorageConfig struct {
	Backend   string     `mapstructure:"backend"`
	UploadDir string     `mapstructure:"upload_dir"`
	ResultDir string     `mapstructure:"result_dir"`
	SFTP      SFTPConfig `mapstructure:"sftp"`
}

// SFTPConfig holds the storage host credentials. Password and PrivateKey may be
// sealed ("enc:...") with SecretKey.
type SFTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	SecretKey      string        `mapstructure:"secret_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type ProcessingConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxTicks     int           `mapstructure:"max_ticks"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

type SegmentationConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type UpscaleConfig struct {
	Filter  string  `mapstructure:"filter"`
	Sharpen float64 `mapstructure:"sharpen"`
}

// RetentionConfig controls purging of result artifacts from finished tasks.
type RetentionConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	TTL       time.Duration `mapstructure:"ttl"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.body_limit", 20*1024*1024)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.upload_dir", "../uploads")
	v.SetDefault("storage.result_dir", "../results")
	v.SetDefault("storage.sftp.port", 22)
	v.SetDefault("storage.sftp.timeout", 30*time.Second)
	v.SetDefault("storage.sftp.max_retries", 3)
	v.SetDefault("storage.sftp.password", "")
	v.SetDefault("storage.sftp.private_key", "")
	v.SetDefault("storage.sftp.private_key_file", "")
	v.SetDefault("storage.sftp.secret_key", "")

	v.SetDefault("processing.workers", 2)
	v.SetDefault("processing.queue_size", 64)
	v.SetDefault("processing.poll_interval", 300*time.Millisecond)
	v.SetDefault("processing.max_ticks", 100)
	v.SetDefault("processing.job_timeout", 5*time.Minute)

	v.SetDefault("segmentation.endpoint", "http://127.0.0.1:7000/api/remove")
	v.SetDefault("segmentation.timeout", 2*time.Minute)

	v.SetDefault("upscale.filter", "lanczos")
	v.SetDefault("upscale.sharpen", 0.0)

	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.ttl", 24*time.Hour)
	v.SetDefault("retention.interval", time.Hour)
	v.SetDefault("retention.batch_size", 100)

	v.SetDefault("features.request_id_header", "X-Request-ID")
	v.SetDefault("features.enable_request_logging", true)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load reads the YAML file at path. A missing file is tolerated when path is empty,
// in which case defaults and PIXELIFT_* environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PIXELIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be positive")
	}
	if c.Processing.PollInterval <= 0 {
		return fmt.Errorf("processing.poll_interval must be positive")
	}
	if c.Processing.MaxTicks <= 0 {
		return fmt.Errorf("processing.max_ticks must be positive")
	}
	if c.Storage.UploadDir == "" || c.Storage.ResultDir == "" {
		return fmt.Errorf("storage.upload_dir and storage.result_dir are required")
	}
	switch c.Storage.Backend {
	case "local":
	case "sftp":
		if c.Storage.SFTP.Host == "" || c.Storage.SFTP.User == "" {
			return fmt.Errorf("storage.sftp.host and storage.sftp.user are required")
		}
		sftp := c.Storage.SFTP
		if sftp.Password == "" && sftp.PrivateKey == "" && sftp.PrivateKeyFile == "" {
			return fmt.Errorf("storage.sftp requires password, private_key or private_key_file")
		}
		if sftp.SecretKey == "" && (strings.HasPrefix(sftp.Password, "enc:") || strings.HasPrefix(sftp.PrivateKey, "enc:")) {
			return fmt.Errorf("storage.sftp.secret_key is required for sealed credentials")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Retention.Enabled && (c.Retention.TTL <= 0 || c.Retention.Interval <= 0) {
		return fmt.Errorf("retention.ttl and retention.interval must be positive")
	}
	return nil
}
