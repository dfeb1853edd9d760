// Copyright 2025 Legion Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "legiond.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DataDir         string `yaml:"dataDir"                                        split_words:"true"`
	MetricsAddr     string `yaml:"metricsAddr"                                    split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout"                                split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout" envconfig:"LEGIOND_TRACING_STDOUT"`

	// Sale period bounds, in seconds (0 = protocol default)
	MinSalePeriod   int64 `yaml:"minSalePeriod"   split_words:"true"`
	MaxSalePeriod   int64 `yaml:"maxSalePeriod"   split_words:"true"`
	MinRefundPeriod int64 `yaml:"minRefundPeriod" split_words:"true"`
	MaxRefundPeriod int64 `yaml:"maxRefundPeriod" split_words:"true"`
	MaxLockupPeriod int64 `yaml:"maxLockupPeriod" split_words:"true"`
}

var globalConfig = &Config{
	DataDir:         ".legiond",
	MetricsAddr:     "0.0.0.0:12798",
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.legiond/legiond.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".legiond", "legiond.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try /etc/legiond/legiond.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/legiond/legiond.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Load config values from environment variables. The LEGIOND
	// prefix keeps us from picking up unrelated env vars.
	err := envconfig.Process("legiond", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	return globalConfig, nil
}

// GetConfig returns the global config instance
func GetConfig() *Config {
	return globalConfig
}
