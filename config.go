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

package legion

import (
	"log/slog"
	"time"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	promRegistry         prometheus.Registerer
	logger               *slog.Logger
	dataDir              string
	metricsListenAddress string
	bounds               sale.Bounds
	tracing              bool
	tracingStdout        bool
	shutdownTimeout      time.Duration
}

type ConfigOptionFunc func(*Config)

// NewConfig creates a new service config with sane defaults and
// applies the provided options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		logger:          slog.Default(),
		bounds:          sale.DefaultBounds(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithMetricsListenAddress enables the prometheus metrics listener on
// the given address (empty = disabled)
func WithMetricsListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.metricsListenAddress = address
	}
}

func WithBounds(bounds sale.Bounds) ConfigOptionFunc {
	return func(c *Config) {
		c.bounds = bounds
	}
}

// WithTracing enables OpenTelemetry tracing. The OTLP-HTTP exporter is
// configured using the standard OTEL_EXPORTER_OTLP_* env vars.
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout exports traces to stdout instead of OTLP-HTTP
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
