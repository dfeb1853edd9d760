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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	legion "github.com/Legion-Team/legion-protocol-contracts-sub000"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/internal/config"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/prometheus/client_golang/prometheus"
)

// bounds builds the sale period bounds from config, falling back to
// protocol defaults for unset values
func bounds(cfg *config.Config) sale.Bounds {
	b := sale.DefaultBounds()
	if cfg.MinSalePeriod > 0 {
		b.SaleMin = cfg.MinSalePeriod
	}
	if cfg.MaxSalePeriod > 0 {
		b.SaleMax = cfg.MaxSalePeriod
	}
	if cfg.MinRefundPeriod > 0 {
		b.RefundMin = cfg.MinRefundPeriod
	}
	if cfg.MaxRefundPeriod > 0 {
		b.RefundMax = cfg.MaxRefundPeriod
	}
	if cfg.MaxLockupPeriod > 0 {
		b.LockupMax = cfg.MaxLockupPeriod
	}
	return b
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(
		fmt.Sprintf("config: %+v", cfg),
		"component", "node",
	)
	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	n, err := legion.New(
		legion.NewConfig(
			legion.WithLogger(logger),
			legion.WithDataDir(cfg.DataDir),
			legion.WithBounds(bounds(cfg)),
			legion.WithMetricsListenAddress(cfg.MetricsAddr),
			legion.WithTracing(cfg.Tracing),
			legion.WithTracingStdout(cfg.TracingStdout),
			legion.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			legion.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := n.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("node stopped")
			if err := n.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("node error", "error", err)
		signalCtxStop()
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
		}
		return err
	}
}
