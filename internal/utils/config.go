package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const defaultFeedURL = "wss://ws.perfect-menu.it/agent"

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (model.Config, error) {
	var config model.Config
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// LoadOrSetupConfig loads the config file named in ctx. On first run it asks
// for the feed URL and API key on in and writes the file.
func LoadOrSetupConfig(ctx context.Context, in io.Reader, out io.Writer) (model.Config, error) {
	configFile := ctx.Value(model.ContextConfigFile).(string)

	if _, err := os.Stat(configFile); err == nil {
		return LoadConfig(configFile)
	} else if !os.IsNotExist(err) {
		return model.Config{}, err
	}

	var config model.Config
	if v, ok := ctx.Value(model.ContextAppVersion).(string); ok {
		config.AppVersion = v
	}
	fmt.Fprintln(out, "--- Initial Setup ---")
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		ans, _ := reader.ReadString('\n')
		return strings.TrimSpace(ans)
	}

	config.Feed.URL = ask(fmt.Sprintf("Enter WebSocket feed URL (default: %s): ", defaultFeedURL))
	if config.Feed.URL == "" {
		config.Feed.URL = defaultFeedURL
	}
	config.Feed.APIKey = ask("Enter Server API Key: ")
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}

	if err := SaveConfig(configFile, config); err != nil {
		return config, err
	}
	fmt.Fprintln(out, "Configuration saved.")
	return config, nil
}

func SaveConfig(path string, config model.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
