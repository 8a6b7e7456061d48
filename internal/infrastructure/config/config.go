package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix 环境变量前缀，如 IAFLEET_SERVER_PORT
const EnvPrefix = "IAFLEET"

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Vault    VaultConfig    `mapstructure:"vault" yaml:"vault"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`

	// source 优先级最高的配置文件路径，用于热更新
	source string
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	Mode        string   `mapstructure:"mode" yaml:"mode"` // debug, release, test
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type         string `mapstructure:"type" yaml:"type"` // sqlite, postgres
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// VaultConfig 凭据加密配置
type VaultConfig struct {
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EventsConfig 事件总线配置
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 优先级 (低 → 高): 默认值 → 全局 ~/.iafleet/ → 项目本地 → .env → 环境变量
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	source := ""

	// Layer 1: 全局配置 ~/.iafleet/config.yaml
	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	} else {
		source = v.ConfigFileUsed()
	}

	// Layer 2: 项目本地配置，检查 ./config/config.yaml 和 ./config.yaml
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err != nil {
			continue
		}
		local := viper.New()
		local.SetConfigFile(localPath)
		if err := local.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
		}
		if err := v.MergeConfigMap(local.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", localPath, err)
		}
		source = localPath
		break // 只取第一个找到的本地配置
	}

	// Layer 3: .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 兼容旧部署使用的变量名
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("vault.secret_key", EnvPrefix+"_VAULT_SECRET_KEY", "SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Database.normalize()
	cfg.source = source

	return &cfg, nil
}

// Validate 校验启动所需的配置项
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Vault.SecretKey) == "" {
		return errors.New("vault.secret_key is required (or set SECRET_KEY)")
	}
	return nil
}

// Source 返回参与热更新的配置文件路径，没有配置文件时为空
func (c *Config) Source() string {
	return c.source
}

// Watch 监听配置文件变化，变化后重新加载并回调
func (c *Config) Watch(logger *zap.Logger, onChange func(*Config)) bool {
	if c.source == "" {
		return false
	}

	w := viper.New()
	w.SetConfigFile(c.source)
	if err := w.ReadInConfig(); err != nil {
		logger.Warn("Config watch disabled", zap.String("path", c.source), zap.Error(err))
		return false
	}

	w.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := Load()
		if err != nil {
			logger.Warn("Config reload failed", zap.String("path", e.Name), zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("path", e.Name))
		onChange(next)
	})
	w.WatchConfig()
	return true
}

// normalize 识别 DATABASE_URL 风格的连接串
func (d *DatabaseConfig) normalize() {
	switch {
	case strings.HasPrefix(d.DSN, "postgres://"), strings.HasPrefix(d.DSN, "postgresql://"):
		d.Type = "postgres"
	case strings.HasPrefix(d.DSN, "sqlite:///"):
		d.Type = "sqlite"
		d.DSN = strings.TrimPrefix(d.DSN, "sqlite:///")
	}
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.mode", defaults.Server.Mode)
	v.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)

	v.SetDefault("database.type", defaults.Database.Type)
	v.SetDefault("database.dsn", defaults.Database.DSN)
	v.SetDefault("database.log_level", defaults.Database.LogLevel)
	v.SetDefault("database.max_open_conns", defaults.Database.MaxOpenConns)

	v.SetDefault("vault.secret_key", "")

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("events.buffer_size", defaults.Events.BufferSize)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Type:         "sqlite",
			DSN:          "iafleet.db",
			LogLevel:     "warn",
			MaxOpenConns: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
	}
}
