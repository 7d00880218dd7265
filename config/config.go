package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Room     RoomConfig     `mapstructure:"room"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig selects the round history backend: "memory", "gorm" or "postgres".
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RoomConfig struct {
	// Rules are overrides applied to every room created by the server,
	// before the per-room overrides sent by the first joining client.
	Rules           map[string]interface{} `mapstructure:"rules"`
	BotTickInterval time.Duration          `mapstructure:"bot_tick_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9100")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("room.bot_tick_interval", 500*time.Millisecond)
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// defaults and environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
