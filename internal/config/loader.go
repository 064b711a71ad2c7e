package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for sapl.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching a "sapl" binary in the current directory, which Viper's
// built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by LoadConfig).
		viper.SetConfigName("sapl")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SAPL_ENGINE_COMBINING_ALGORITHM_VOTING_MODE
	viper.SetEnvPrefix("SAPL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a sapl config file with an
// explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".sapl"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "sapl"))
		}
	} else {
		paths = append(paths, "/etc/sapl")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for sapl.yaml or
// sapl.yml. Returns the full path of the first match, or "" if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sapl"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every config key for environment variable support.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("engine.target_strategy")
	_ = viper.BindEnv("engine.combining_algorithm.voting_mode")
	_ = viper.BindEnv("engine.combining_algorithm.default_decision")
	_ = viper.BindEnv("engine.combining_algorithm.error_handling")
	_ = viper.BindEnv("engine.combining_algorithm.only_one_applicable_treats_indeterminate_as_applicable")

	_ = viper.BindEnv("broker.linger_duration")
	_ = viper.BindEnv("broker.default_initial_timeout")

	_ = viper.BindEnv("logging.level")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT validate. Use this when a caller wants to adjust fields (e.g. from CLI
// flags) before validation runs.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: continue with env vars and defaults only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" if none was found (env vars and defaults only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
