package internal

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// DefaultConfigPath is the default path to the config file
	DefaultAppName    = "evalprobe"
	DefaultConfigPath = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir   = filepath.Join(DefaultConfigPath, ".cache")
	DefaultHubCache   = filepath.Join(DefaultCacheDir, "huggingface")
	DefaultDataCache  = filepath.Join(DefaultCacheDir, "data")

	// Defaults of the inspection run
	DefaultModelPath  = "meta-llama/Llama-2-7b-hf"
	DefaultDataDir    = "../data"
	DefaultMaxLength  = 2048
	DefaultChatFormat = "tulu"
	DefaultTask       = "alpacaeval"
	DefaultBatchSize  = 1
	DefaultLimit      = 3
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLoggerWithLevel returns GetLogger filtered at the named level.
// Unknown or empty names keep the info level.
func GetLoggerWithLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
