package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for Prism
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Engine EngineConfig
	Ingest IngestConfig
	Cache  CacheConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	MaxPayloadSize int64 // Maximum request payload size in bytes
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig bounds what a single query may return.
type EngineConfig struct {
	BarLineBudget         int     // Point budget for bar, line and area charts
	PieBudget             int     // Slice budget for pie charts
	ScatterBudget         int     // Point budget for scatter charts
	MaxVisualPoints       int     // Absolute ceiling across all chart kinds
	TablePageCeiling      int     // Maximum rows per table page
	DefaultPageSize       int     // Page size when the request omits one
	MinZoomRatio          float64 // Fraction of the budget granted at zoom level 0
	ParallelScanThreshold int     // Row count above which filter scans go parallel
}

type IngestConfig struct {
	Delimiter   string   // Field delimiter, single character
	NullTokens  []string // Cell values treated as null
	TimeFormats []string // Datetime layouts tried during inference
	MaxRows     int      // Reject files with more rows than this (0 = unlimited)
}

type CacheConfig struct {
	Enabled bool
	Size    int // Number of cached query results
}

// Load loads configuration from environment and config file
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("PRISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("prism")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/prism/")
	v.AddConfigPath("$HOME/.prism/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	maxPayloadSize, err := ParseSize(v.GetString("server.max_payload_size"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.max_payload_size: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			ReadTimeout:    v.GetInt("server.read_timeout"),
			WriteTimeout:   v.GetInt("server.write_timeout"),
			MaxPayloadSize: maxPayloadSize,
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Engine: EngineConfig{
			BarLineBudget:         v.GetInt("engine.bar_line_budget"),
			PieBudget:             v.GetInt("engine.pie_budget"),
			ScatterBudget:         v.GetInt("engine.scatter_budget"),
			MaxVisualPoints:       v.GetInt("engine.max_visual_points"),
			TablePageCeiling:      v.GetInt("engine.table_page_ceiling"),
			DefaultPageSize:       v.GetInt("engine.default_page_size"),
			MinZoomRatio:          v.GetFloat64("engine.min_zoom_ratio"),
			ParallelScanThreshold: v.GetInt("engine.parallel_scan_threshold"),
		},
		Ingest: IngestConfig{
			Delimiter:   v.GetString("ingest.delimiter"),
			NullTokens:  v.GetStringSlice("ingest.null_tokens"),
			TimeFormats: v.GetStringSlice("ingest.time_formats"),
			MaxRows:     v.GetInt("ingest.max_rows"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			Size:    v.GetInt("cache.size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.max_payload_size", "512MB")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Engine defaults
	v.SetDefault("engine.bar_line_budget", 500)
	v.SetDefault("engine.pie_budget", 20)
	v.SetDefault("engine.scatter_budget", 10000)
	v.SetDefault("engine.max_visual_points", 50000)
	v.SetDefault("engine.table_page_ceiling", 1000)
	v.SetDefault("engine.default_page_size", 100)
	v.SetDefault("engine.min_zoom_ratio", 0.2)
	v.SetDefault("engine.parallel_scan_threshold", getDefaultScanThreshold())

	// Ingest defaults
	v.SetDefault("ingest.delimiter", ",")
	v.SetDefault("ingest.null_tokens", []string{"", "null", "NULL", "NA", "N/A"})
	v.SetDefault("ingest.time_formats", []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	})
	v.SetDefault("ingest.max_rows", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 256)
}

func getDefaultScanThreshold() int {
	// Parallel scans only pay off once the per-goroutine chunk is large
	// enough to amortize scheduling. Scale down on small machines.
	cores := runtime.NumCPU()
	if cores <= 2 {
		return 200000
	}
	return 100000
}

func (cfg *Config) validate() error {
	if cfg.Engine.BarLineBudget < 1 || cfg.Engine.PieBudget < 1 || cfg.Engine.ScatterBudget < 1 {
		return fmt.Errorf("engine budgets must be at least 1")
	}
	if cfg.Engine.MaxVisualPoints < 1 {
		return fmt.Errorf("engine.max_visual_points must be at least 1")
	}
	if cfg.Engine.TablePageCeiling < 1 {
		return fmt.Errorf("engine.table_page_ceiling must be at least 1")
	}
	if cfg.Engine.MinZoomRatio < 0 || cfg.Engine.MinZoomRatio > 1 {
		return fmt.Errorf("engine.min_zoom_ratio must be between 0 and 1")
	}
	if len(cfg.Ingest.Delimiter) > 1 {
		return fmt.Errorf("ingest.delimiter must be a single character")
	}
	return nil
}

// ParseSize parses a human-readable size string (e.g., "1GB", "500MB", "100KB") to bytes.
// Supports: B, KB, MB, GB (case-insensitive).
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type unitInfo struct {
		suffix     string
		multiplier int64
	}
	units := []unitInfo{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, unit := range units {
		if strings.HasSuffix(sizeStr, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, unit.suffix))

			var num float64
			var trailing string
			n, _ := fmt.Sscanf(numStr, "%f%s", &num, &trailing)
			if n == 0 {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			if trailing != "" {
				return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
			}
			if num < 0 {
				return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	var num int64
	var trailing string
	n, _ := fmt.Sscanf(sizeStr, "%d%s", &num, &trailing)
	if n == 0 || trailing != "" {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}
