package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Store backends
	StoreMemory = "memory"
	StoreRedis  = "redis"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 25 * 1024 * 1024 // 25MB
	DefaultPageWidth   = 612.0            // US Letter, points
	DefaultPageHeight  = 792.0
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "stamp:doc:"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "MCP_STAMP"
)

// Config holds all configuration for the PDF stamper MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Workspace directory for base PDFs and rendered output
	PDFDirectory string

	// Rendering configuration
	PageWidth      float64 // default page size for new documents, points
	PageHeight     float64
	StrictGeometry bool // reject renders with out-of-range field geometry
	VerifyOutput   bool // re-open rendered PDFs before returning them

	// Storage configuration
	Store       string // "memory" or "redis"
	RedisAddr   string
	RedisDB     int
	RedisPrefix string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum base PDF size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFDirectory:   currentDir,
		PageWidth:      DefaultPageWidth,
		PageHeight:     DefaultPageHeight,
		StrictGeometry: true,
		VerifyOutput:   false,
		Store:          StoreMemory,
		RedisAddr:      DefaultRedisAddr,
		RedisPrefix:    DefaultRedisPrefix,
		Version:        "1.0.0",
		ServerName:     "mcp-pdf-stamper",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flag names double as viper keys; MCP_STAMP_<NAME> overrides them
var flagNames = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"pagewidth", "pageheight", "strict", "verify",
	"store", "redisaddr", "redisdb", "redisprefix",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("pagewidth", cfg.PageWidth)
	viper.SetDefault("pageheight", cfg.PageHeight)
	viper.SetDefault("strict", cfg.StrictGeometry)
	viper.SetDefault("verify", cfg.VerifyOutput)
	viper.SetDefault("store", cfg.Store)
	viper.SetDefault("redisaddr", cfg.RedisAddr)
	viper.SetDefault("redisdb", cfg.RedisDB)
	viper.SetDefault("redisprefix", cfg.RedisPrefix)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory for base PDFs and rendered output")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum base PDF size in bytes")
	pflag.Float64("pagewidth", cfg.PageWidth, "Default page width in points for new documents")
	pflag.Float64("pageheight", cfg.PageHeight, "Default page height in points for new documents")
	pflag.Bool("strict", cfg.StrictGeometry, "Reject renders whose fields fall outside the page")
	pflag.Bool("verify", cfg.VerifyOutput, "Re-open rendered PDFs to verify them")
	pflag.String("store", cfg.Store, "Document store backend: 'memory' or 'redis'")
	pflag.String("redisaddr", cfg.RedisAddr, "Redis address (redis store only)")
	pflag.Int("redisdb", cfg.RedisDB, "Redis database number (redis store only)")
	pflag.String("redisprefix", cfg.RedisPrefix, "Redis key prefix for documents (redis store only)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Stamper - A Model Context Protocol server for placing and burning fields into PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # stdio mode, in-memory documents (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                     # stdio mode with a workspace directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081                # HTTP server with SSE transport\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --store=redis --verify     # shared documents, verified output\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", envPrefix, strings.ToUpper(name))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.PageWidth = viper.GetFloat64("pagewidth")
	cfg.PageHeight = viper.GetFloat64("pageheight")
	cfg.StrictGeometry = viper.GetBool("strict")
	cfg.VerifyOutput = viper.GetBool("verify")
	cfg.Store = viper.GetString("store")
	cfg.RedisAddr = viper.GetString("redisaddr")
	cfg.RedisDB = viper.GetInt("redisdb")
	cfg.RedisPrefix = viper.GetString("redisprefix")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		return fmt.Errorf("default page size must be positive, got %gx%g", c.PageWidth, c.PageHeight)
	}

	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address cannot be empty when store is 'redis'")
		}
		if c.RedisDB < 0 {
			return errors.New("redis database number cannot be negative")
		}
	default:
		return fmt.Errorf("invalid store: %s (must be one of: memory, redis)", c.Store)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, Store: %s, Page: %gx%g, Strict: %t, Verify: %t, "+
		"LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.Store, c.PageWidth, c.PageHeight, c.StrictGeometry, c.VerifyOutput,
		c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
