package config

import (
	"encoding/json"
	"os"
)

// DBConfig holds the database connection parameters.
type DBConfig struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Port     int    `json:"port"`
	SSLMode  string `json:"sslmode"`
	TimeZone string `json:"timezone"`
}

// LoggerConfig holds the logging configuration.
type LoggerConfig struct {
	Level      string `json:"level"`  // e.g., "debug", "info", "warn", "error"
	Format     string `json:"format"` // "text" or "json"
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// NonceConfig bounds nonce allocation.
type NonceConfig struct {
	// MaxRangeSize caps a single allocation. Zero means the default cap.
	MaxRangeSize int64 `json:"max_range_size"`
}

// CeremonyConfig controls the local tss-lib ceremony used for development
// and wallet bootstrap.
type CeremonyConfig struct {
	Parties   int `json:"parties"`
	Threshold int `json:"threshold"`
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort string         `json:"server_port"`
	Database   DBConfig       `json:"database"`
	Logger     LoggerConfig   `json:"logger"`
	Nonce      NonceConfig    `json:"nonce"`
	Ceremony   CeremonyConfig `json:"ceremony"`
}

// LoadConfig reads the configuration from a file and returns a Config struct.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &Config{}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
