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

// Package legion is the service runtime around the sale lifecycle
// engine: it wires the event bus, the persistence stores, metrics,
// and tracing, and journals every sale event so off-chain allocation
// jobs have a durable audit trail to consume.
package legion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/database"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/registry"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// saleEventTypes is every event type the lifecycle engine publishes;
// the node journals all of them
var saleEventTypes = []event.EventType{
	sale.CommitEventType,
	sale.RefundEventType,
	sale.CancelEventType,
	sale.CancelWithdrawEventType,
	sale.ResultsPublishedEventType,
	sale.CapitalRootEventType,
	sale.ApprovalRootEventType,
	sale.TokensSuppliedEventType,
	sale.CapitalWithdrawnEventType,
	sale.AllocationClaimedEventType,
	sale.ExcessWithdrawnEventType,
	sale.VestedReleasedEventType,
	sale.PausedEventType,
	sale.UnpausedEventType,
	sale.AddressesSyncedEventType,
	sale.RevealInitializedEventType,
	sale.PrivateKeyPublishedEventType,
}

type managedSale struct {
	variant string
	sale    *sale.Sale
}

type Node struct {
	config        Config
	eventBus      *event.EventBus
	db            *database.Database
	registry      *registry.Registry
	metricsServer *http.Server
	sales         map[string]managedSale
	salesMutex    sync.RWMutex
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.logger == nil {
		return nil, errors.New("logger is required")
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		sales:    make(map[string]managedSale),
		done:     make(chan struct{}),
	}
	n.registry = registry.NewRegistry(n.eventBus)
	return n, nil
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Registry returns the protocol address registry
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Database returns the persistence stores; only valid after Run has
// started
func (n *Node) Database() *database.Database {
	return n.db
}

// EngineConfig returns a sale engine configuration prewired to the
// node's bus, registry, bounds, and metrics registry. Callers fill in
// the token bindings and vesting factory for the sale at hand.
func (n *Node) EngineConfig() sale.EngineConfig {
	return sale.EngineConfig{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Bounds:       n.config.bounds,
		Registry:     n.registry,
	}
}

// Manage registers an initialized sale so its snapshots persist on
// every event it publishes
func (n *Node) Manage(variant string, s *sale.Sale) {
	n.salesMutex.Lock()
	defer n.salesMutex.Unlock()
	n.sales[s.Config().SaleID] = managedSale{variant: variant, sale: s}
}

func (n *Node) Run() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Tracing:      n.config.tracing,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Journal every sale event and persist snapshots
	for _, eventType := range saleEventTypes {
		n.eventBus.SubscribeFunc(eventType, n.handleSaleEvent)
	}
	// Start metrics listener
	if err := n.startMetricsListener(); err != nil {
		return err
	}
	n.config.logger.Info(
		"legion service started",
		"component", "node",
		"data_dir", n.config.dataDir,
	)
	// Wait for shutdown
	<-n.done
	return nil
}

func (n *Node) handleSaleEvent(evt event.Event) {
	saleID, ok := saleEventID(evt.Data)
	if !ok {
		return
	}
	if _, err := n.db.Journal().Append(saleID, evt); err != nil {
		n.config.logger.Error(
			"failed to journal sale event",
			"component", "node",
			"sale_id", saleID,
			"type", evt.Type,
			"error", err,
		)
		return
	}
	n.persistSnapshot(saleID, evt)
}

func (n *Node) persistSnapshot(saleID string, evt event.Event) {
	n.salesMutex.RLock()
	managed, ok := n.sales[saleID]
	n.salesMutex.RUnlock()
	if !ok {
		return
	}
	if err := n.db.SaveSale(
		saleID,
		managed.variant,
		managed.sale.Status(),
	); err != nil {
		n.config.logger.Error(
			"failed to persist sale snapshot",
			"component", "node",
			"sale_id", saleID,
			"error", err,
		)
	}
	investor, ok := saleEventInvestor(evt.Data)
	if !ok {
		return
	}
	pos, err := managed.sale.Position(investor)
	if err != nil {
		return
	}
	if err := n.db.SavePosition(saleID, pos); err != nil {
		n.config.logger.Error(
			"failed to persist position snapshot",
			"component", "node",
			"sale_id", saleID,
			"investor", investor.String(),
			"error", err,
		)
	}
}

// saleEventID extracts the sale identifier from an event payload
func saleEventID(data any) (string, bool) {
	switch evt := data.(type) {
	case sale.CommitEvent:
		return evt.SaleID, true
	case sale.RefundEvent:
		return evt.SaleID, true
	case sale.CancelEvent:
		return evt.SaleID, true
	case sale.CancelWithdrawEvent:
		return evt.SaleID, true
	case sale.ResultsPublishedEvent:
		return evt.SaleID, true
	case sale.CapitalRootEvent:
		return evt.SaleID, true
	case sale.ApprovalRootEvent:
		return evt.SaleID, true
	case sale.TokensSuppliedEvent:
		return evt.SaleID, true
	case sale.CapitalWithdrawnEvent:
		return evt.SaleID, true
	case sale.AllocationClaimedEvent:
		return evt.SaleID, true
	case sale.ExcessWithdrawnEvent:
		return evt.SaleID, true
	case sale.VestedReleasedEvent:
		return evt.SaleID, true
	case sale.PauseEvent:
		return evt.SaleID, true
	case sale.AddressesSyncedEvent:
		return evt.SaleID, true
	case sale.RevealInitializedEvent:
		return evt.SaleID, true
	case sale.PrivateKeyPublishedEvent:
		return evt.SaleID, true
	default:
		return "", false
	}
}

// saleEventInvestor extracts the affected investor, when the event
// concerns one
func saleEventInvestor(data any) (common.Address, bool) {
	switch evt := data.(type) {
	case sale.CommitEvent:
		return evt.Investor, true
	case sale.RefundEvent:
		return evt.Investor, true
	case sale.CancelWithdrawEvent:
		return evt.Investor, true
	case sale.AllocationClaimedEvent:
		return evt.Investor, true
	case sale.ExcessWithdrawnEvent:
		return evt.Investor, true
	case sale.VestedReleasedEvent:
		return evt.Investor, true
	default:
		return common.ZeroAddress, false
	}
}

func (n *Node) startMetricsListener() error {
	if n.config.metricsListenAddress == "" {
		return nil
	}
	gatherer, ok := n.config.promRegistry.(prometheus.Gatherer)
	if !ok {
		return errors.New(
			"metrics listener requires a registry that can gather",
		)
	}
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)
	n.metricsServer = &http.Server{
		Addr:              n.config.metricsListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	go func() {
		err := n.metricsServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.config.logger.Error(
				"metrics listener failed",
				"component", "node",
				"error", err,
			)
		}
	}()
	n.config.logger.Info(
		"serving prometheus metrics",
		"component", "node",
		"address", n.config.metricsListenAddress,
	)
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		n.config.shutdownTimeout,
	)
	defer cancel()
	var err error
	n.config.logger.Debug(
		"starting graceful shutdown",
		"component", "node",
	)
	if n.metricsServer != nil {
		if stopErr := n.metricsServer.Shutdown(ctx); stopErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("metrics listener shutdown: %w", stopErr),
			)
		}
	}
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("shutdown function: %w", fnErr),
			)
		}
	}
	n.shutdownFuncs = nil
	n.eventBus.Stop()
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}
	n.config.logger.Debug(
		"graceful shutdown complete",
		"component", "node",
	)
	close(n.done)
	return err
}
