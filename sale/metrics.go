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

package sale

import (
	"errors"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

type saleMetrics struct {
	commitments   *prometheus.CounterVec
	refunds       *prometheus.CounterVec
	claims        *prometheus.CounterVec
	capitalRaised *prometheus.GaugeVec
	investors     *prometheus.GaugeVec
}

// registerCounterVec registers a counter vec, reusing the existing
// collector when another sale on the same registry got there first
func registerCounterVec(
	promRegistry prometheus.Registerer,
	opts prometheus.CounterOpts,
	labels []string,
) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := promRegistry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerGaugeVec(
	promRegistry prometheus.Registerer,
	opts prometheus.GaugeOpts,
	labels []string,
) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	if err := promRegistry.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.GaugeVec)
		}
		panic(err)
	}
	return g
}

func newSaleMetrics(promRegistry prometheus.Registerer) *saleMetrics {
	saleLabels := []string{"sale_id"}
	return &saleMetrics{
		commitments: registerCounterVec(
			promRegistry,
			prometheus.CounterOpts{
				Name: "legion_sale_commitments_total",
				Help: "total capital commitments accepted",
			},
			saleLabels,
		),
		refunds: registerCounterVec(
			promRegistry,
			prometheus.CounterOpts{
				Name: "legion_sale_refunds_total",
				Help: "total refunds paid out",
			},
			saleLabels,
		),
		claims: registerCounterVec(
			promRegistry,
			prometheus.CounterOpts{
				Name: "legion_sale_allocation_claims_total",
				Help: "total allocation claims settled",
			},
			saleLabels,
		),
		capitalRaised: registerGaugeVec(
			promRegistry,
			prometheus.GaugeOpts{
				Name: "legion_sale_capital_raised",
				Help: "current raised capital in bid asset units",
			},
			saleLabels,
		),
		investors: registerGaugeVec(
			promRegistry,
			prometheus.GaugeOpts{
				Name: "legion_sale_investors",
				Help: "number of investor positions",
			},
			saleLabels,
		),
	}
}

// setCapitalRaised records the raised total. Gauge precision is
// float64; exact accounting lives in the sale state, not in metrics.
func (m *saleMetrics) setCapitalRaised(saleID string, raised *big.Int) {
	approx, _ := new(big.Float).SetInt(raised).Float64()
	m.capitalRaised.WithLabelValues(saleID).Set(approx)
}
