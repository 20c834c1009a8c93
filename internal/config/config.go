package config

import (
	"log"
	"time"

	"github.com/spf13/viper"

	"go-feature-platform/pkg/postgres"
	"go-feature-platform/pkg/redis"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Plugin   PluginConfig    `mapstructure:"plugin"`
	Telegram TelegramConfig  `mapstructure:"telegram"`
	Database postgres.Config `mapstructure:"database"`
	Redis    redis.Config    `mapstructure:"redis"`
	Log      LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

// PluginConfig describes where feature scripts live and how they are run.
type PluginConfig struct {
	Dir          string        // directory scanned by the registry synchronizer
	UploadDir    string        // destination for explicitly uploaded scripts
	Interpreter  string        // e.g. "python3"
	ScriptExt    string        // e.g. ".py"
	EntryFile    string        // entry point inside directory plugins, e.g. "main.py"
	ScanInterval time.Duration // full rescan period
	MetaTimeout  time.Duration // budget for the metadata probe subprocess
	StartDelay   time.Duration // debounce before invoking the entry point
}

type TelegramConfig struct {
	BotToken                  string
	ChatID                    string
	MaxGlobalRequestPerSecond int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PLUGIN_DIR", "features")
	viper.SetDefault("PLUGIN_UPLOAD_DIR", "uploaded_features")
	viper.SetDefault("PLUGIN_INTERPRETER", "python3")
	viper.SetDefault("PLUGIN_SCRIPT_EXT", ".py")
	viper.SetDefault("PLUGIN_ENTRY_FILE", "main.py")
	viper.SetDefault("PLUGIN_SCAN_INTERVAL", "60s")
	viper.SetDefault("PLUGIN_META_TIMEOUT", "10s")
	viper.SetDefault("PLUGIN_START_DELAY", "1s")
	viper.SetDefault("TELEGRAM_MAX_GLOBAL_REQUEST_PER_SECOND", 30)

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("ENV"),
		},
		Plugin: PluginConfig{
			Dir:          viper.GetString("PLUGIN_DIR"),
			UploadDir:    viper.GetString("PLUGIN_UPLOAD_DIR"),
			Interpreter:  viper.GetString("PLUGIN_INTERPRETER"),
			ScriptExt:    viper.GetString("PLUGIN_SCRIPT_EXT"),
			EntryFile:    viper.GetString("PLUGIN_ENTRY_FILE"),
			ScanInterval: viper.GetDuration("PLUGIN_SCAN_INTERVAL"),
			MetaTimeout:  viper.GetDuration("PLUGIN_META_TIMEOUT"),
			StartDelay:   viper.GetDuration("PLUGIN_START_DELAY"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Telegram: TelegramConfig{
			BotToken:                  viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:                    viper.GetString("TELEGRAM_CHAT_ID"),
			MaxGlobalRequestPerSecond: viper.GetInt("TELEGRAM_MAX_GLOBAL_REQUEST_PER_SECOND"),
		},
		Database: postgres.Config{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			DBName:          viper.GetString("DATABASE_NAME"),
			SSLMode:         viper.GetString("DATABASE_SSL_MODE"),
			TimeZone:        viper.GetString("DATABASE_TIME_ZONE"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        viper.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
	}

	return config, nil
}
