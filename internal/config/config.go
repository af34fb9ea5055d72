// Package config loads the extension configuration from a JSON file with
// viper and exposes typed views of it.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "ellipse_grip.cfg.json"

// ErrConfigNotFound is returned by Load when no file exists. Defaults are
// still in effect.
var ErrConfigNotFound = errors.New("config file not found")

// WheelConfig selects and refreshes host wheels.
type WheelConfig struct {
	TypeName      string        `json:"typeName" mapstructure:"typeName"`
	RefreshPeriod time.Duration `json:"refreshPeriod" mapstructure:"refreshPeriod"`
}

// EffectsConfig holds the effect rate limits and skid mark tuning.
type EffectsConfig struct {
	ParticlePeriod      time.Duration `json:"particlePeriod" mapstructure:"particlePeriod"`
	SkidmarkPeriod      time.Duration `json:"skidmarkPeriod" mapstructure:"skidmarkPeriod"`
	SkidmarkMaxOverload float64       `json:"skidmarkMaxOverload" mapstructure:"skidmarkMaxOverload"`
	SkidmarkMaxOpacity  float64       `json:"skidmarkMaxOpacity" mapstructure:"skidmarkMaxOpacity"`
}

// SettingsConfig locates the persisted user settings.
type SettingsConfig struct {
	Dir  string `json:"dir" mapstructure:"dir"`
	File string `json:"file" mapstructure:"file"`
}

// Path returns the settings file path.
func (s SettingsConfig) Path() string {
	return filepath.Join(s.Dir, s.File)
}

// TelemetryConfig controls grip sample recording.
type TelemetryConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	SamplePeriod  time.Duration `json:"samplePeriod" mapstructure:"samplePeriod"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
}

// StorageConfig selects the telemetry storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./egslogs")

	viper.SetDefault("wheel.typeName", "ResizableWheelCollider")
	viper.SetDefault("wheel.refreshPeriod", "10s")

	viper.SetDefault("effects.particlePeriod", "20ms")
	viper.SetDefault("effects.skidmarkPeriod", "20ms")
	viper.SetDefault("effects.skidmarkMaxOverload", 0.33)
	viper.SetDefault("effects.skidmarkMaxOpacity", 1.0)

	viper.SetDefault("settings.dir", "NACHSAVE")
	viper.SetDefault("settings.file", "EGS.DAT")

	viper.SetDefault("sim.fixedStep", "20ms")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.samplePeriod", "100ms")
	viper.SetDefault("telemetry.flushInterval", "1s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "ellipse_grip")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "ellipse-grip")
	viper.SetDefault("influx.bucket", "grip")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "ellipse-grip")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load sets defaults and reads the JSON config file from configDir. A missing
// file yields ErrConfigNotFound with defaults in place.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%s in %s: %w", FileName, configDir, ErrConfigNotFound)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetWheelConfig returns the wheel discovery settings.
func GetWheelConfig() WheelConfig {
	return WheelConfig{
		TypeName:      viper.GetString("wheel.typeName"),
		RefreshPeriod: viper.GetDuration("wheel.refreshPeriod"),
	}
}

// GetEffectsConfig returns the effect tuning.
func GetEffectsConfig() EffectsConfig {
	return EffectsConfig{
		ParticlePeriod:      viper.GetDuration("effects.particlePeriod"),
		SkidmarkPeriod:      viper.GetDuration("effects.skidmarkPeriod"),
		SkidmarkMaxOverload: viper.GetFloat64("effects.skidmarkMaxOverload"),
		SkidmarkMaxOpacity:  viper.GetFloat64("effects.skidmarkMaxOpacity"),
	}
}

// GetSettingsConfig returns where user settings are persisted.
func GetSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Dir:  viper.GetString("settings.dir"),
		File: viper.GetString("settings.file"),
	}
}

// GetTelemetryConfig returns the grip sample recording settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:       viper.GetBool("telemetry.enabled"),
		SamplePeriod:  viper.GetDuration("telemetry.samplePeriod"),
		FlushInterval: viper.GetDuration("telemetry.flushInterval"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
		},
	}
}

// GetDBConfig returns the Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
