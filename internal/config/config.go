package config

import (
	"fmt"
	"runtime"
	"time"
)

// Node cache backing modes for the usage/coordinate index.
const (
	NodeCacheMemory = "mem"
	NodeCacheDisk   = "disk"
)

// Config holds the global configuration for an import run
type Config struct {
	// Input settings
	InputFile string

	// Graph build settings
	StyleFile     string  // Optional YAML tag classification table
	NodeCache     string  // "mem" or "disk"
	NodeCacheFile string  // Backing file for the disk node cache
	MaxMeters     float64 // Split edges longer than this (0 = disabled)

	// Output settings
	OutputDir string // Directory for intermediate Parquet files

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Processing settings
	Workers   int
	BatchSize int

	// Logging and metrics
	Verbose         bool
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NodeCache:       NodeCacheMemory,
		NodeCacheFile:   "node-cache.bin",
		OutputDir:       "./graph_data",
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "pgroute",
		DBUser:          "postgres",
		DBSchema:        "public",
		Workers:         runtime.NumCPU(),
		BatchSize:       10000,
		MetricsInterval: 30 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.NodeCache != NodeCacheMemory && c.NodeCache != NodeCacheDisk {
		return fmt.Errorf("node cache mode must be %q or %q, got %q",
			NodeCacheMemory, NodeCacheDisk, c.NodeCache)
	}
	if c.NodeCache == NodeCacheDisk && c.NodeCacheFile == "" {
		return fmt.Errorf("node cache file is required in disk mode")
	}
	if c.MaxMeters < 0 {
		return fmt.Errorf("max meters must be positive, got %f", c.MaxMeters)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	return nil
}
