package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PHOENIX"

var (
	searchPaths = []string{".", "./config", "/etc/phoenix-tracker", "$HOME/.phoenix-tracker"}
	envFiles    = []string{".env", ".env.local"}
)

// loadEnvFiles reads .env files in dir. Variables already set in the
// environment win; missing files are skipped.
func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(os.ExpandEnv(dir), name)
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// initConfig resolves the configuration from, in order of precedence, flags,
// PHOENIX_* variables (including .env files), the config file and defaults.
func initConfig(path string) error {
	dirs := searchPaths
	if path != "" {
		viper.SetConfigFile(path)
		dirs = []string{".", filepath.Dir(path)}
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, dir := range searchPaths {
			viper.AddConfigPath(dir)
		}
	}

	for _, dir := range dirs {
		if err := loadEnvFiles(dir); err != nil {
			return err
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}
