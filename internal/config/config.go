// Package config loads the oncal daemon configuration.
package config

// Config is the root configuration for oncal.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database"`
	Events    EventsConfig    `json:"events"`
	Schedules SchedulesConfig `json:"schedules"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// SchedulesConfig configures declarative schedule entries.
type SchedulesConfig struct {
	File string `json:"file"` // YAML file with initial entries (default: $ONCAL_PATH/schedules.yaml)
}
