package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/mssqlframe/pkg/adapters/mssql"
	"github.com/ruslano69/mssqlframe/pkg/archive"
)

// Config represents the main configuration structure
type Config struct {
	Target  TargetConfig   `yaml:"target"`
	Archive archive.Config `yaml:"archive,omitempty"`
	Audit   AuditConfig    `yaml:"audit,omitempty"`
}

// TargetConfig contains SQL Server connection settings
type TargetConfig struct {
	DSN         string `yaml:"dsn,omitempty"`    // full connection string, overrides the fields below
	Driver      string `yaml:"driver,omitempty"` // mssql (default) or odbc
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Database    string `yaml:"database,omitempty"`
	User        string `yaml:"user,omitempty"`
	Password    string `yaml:"password,omitempty"`
	WindowsAuth bool   `yaml:"windows_auth,omitempty"`
	Schema      string `yaml:"schema,omitempty"` // default schema for unqualified names, dbo by default
}

// AuditConfig for audit logging settings
type AuditConfig struct {
	Type  string `yaml:"type,omitempty"`  // console, file, sqlite; empty = disabled
	Path  string `yaml:"path,omitempty"`  // log file (file) or database file (sqlite)
	Table string `yaml:"table,omitempty"` // audit table name (sqlite), default audit_log
	Level string `yaml:"level,omitempty"` // minimal, standard, full
}

// LoadConfig loads configuration from YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates a sample configuration
func CreateSampleConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Host:     "localhost",
			Port:     1433,
			Database: "mydb",
			User:     "sa",
			Password: "YourPassword123",
			Schema:   "dbo",
		},
		Archive: archive.Config{
			Compression: "zstd",
			Backend:     "local",
			Dir:         "archive",
		},
		Audit: AuditConfig{
			Type:  "file",
			Path:  "audit.log",
			Level: "standard",
		},
	}
}

// BuildDSN constructs the SQL Server connection string from config
func (c *TargetConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.WindowsAuth {
		return fmt.Sprintf("sqlserver://%s:%d?database=%s&integrated security=SSPI",
			c.Host, c.Port, c.Database)
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// MSSQLConfig builds the adapter configuration for the target
func (c *Config) MSSQLConfig() mssql.Config {
	return mssql.Config{
		DSN:    c.Target.BuildDSN(),
		Driver: c.Target.Driver,
		Schema: c.Target.Schema,
	}
}
