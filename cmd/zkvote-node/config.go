package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/internal"
	"github.com/tactizen/zkvote-node/validator"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".zkvote" // Will be prefixed with user's home directory
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	API      APIConfig
	DB       DBConfig
	Verifier VerifierConfig
	Notary   NotaryConfig
	Vote     VoteConfig
	Log      LogConfig
	Datadir  string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig holds the database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// VerifierConfig holds the proof verifier configuration
type VerifierConfig struct {
	VKeyPath string `mapstructure:"vkey"`
}

// NotaryConfig holds the attestation service configuration
type NotaryConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"apikey"`
}

// VoteConfig holds the ballot validation tuning knobs
type VoteConfig struct {
	GraceWindow   time.Duration `mapstructure:"gracewindow"`
	VerifyTimeout time.Duration `mapstructure:"verifytimeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Set up default values
	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("db.type", db.TypePebble)
	v.SetDefault("vote.gracewindow", validator.DefaultGraceWindow)
	v.SetDefault("vote.verifytimeout", validator.DefaultVerifyTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	// Configure flags
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("db.type", db.TypePebble, fmt.Sprintf("database type (%s or %s)", db.TypePebble, db.TypeInMemory))
	flag.StringP("verifier.vkey", "k", "", "path to the Groth16 verification key JSON (required)")
	flag.String("notary.endpoint", "", "attestation service endpoint (empty disables notarization)")
	flag.String("notary.apikey", "", "attestation service API key")
	flag.Duration("vote.gracewindow", validator.DefaultGraceWindow, "how long after a freeze the live registry root is still accepted")
	flag.Duration("vote.verifytimeout", validator.DefaultVerifyTimeout, "proof verification timeout")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zkvote-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: zkvote-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, ZKVOTE_VERIFIER_VKEY or ZKVOTE_API_HOST\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with default settings\n")
		fmt.Fprintf(os.Stderr, "  zkvote-node --verifier.vkey=vkey.json\n\n")
		fmt.Fprintf(os.Stderr, "  # Start with notarization enabled\n")
		fmt.Fprintf(os.Stderr, "  zkvote-node --verifier.vkey=vkey.json --notary.endpoint=https://notary.example.com/attest\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("ZKVOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	// Create config struct
	cfg := &Config{}

	// Unmarshal configuration into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Verifier.VKeyPath == "" {
		return fmt.Errorf("verification key is required (use --verifier.vkey or ZKVOTE_VERIFIER_VKEY)")
	}
	if cfg.DB.Type != db.TypePebble && cfg.DB.Type != db.TypeInMemory {
		return fmt.Errorf("invalid database type %s, available types: %s, %s",
			cfg.DB.Type, db.TypePebble, db.TypeInMemory)
	}
	return nil
}
