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

// Package registry implements the key-value address registry that
// holds the protocol's trusted addresses. Sales cache the resolved
// addresses locally and re-sync on demand.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
)

// Well-known registry keys
const (
	KeyOperator       = "legion.operator"
	KeyFeeReceiver    = "legion.fee_receiver"
	KeyVestingFactory = "legion.vesting_factory"
	KeySigner         = "legion.signer"
)

// AddressChangedEventType is published whenever a registry entry is
// set or overwritten
const AddressChangedEventType = event.EventType("registry.address_changed")

type AddressChangedEvent struct {
	Key      string
	Previous common.Address
	Current  common.Address
}

var ErrUnknownKey = errors.New("registry key not set")

// Registry is a read-mostly key-to-address store
type Registry struct {
	entries  map[string]common.Address
	eventBus *event.EventBus
	mu       sync.RWMutex
}

func NewRegistry(eventBus *event.EventBus) *Registry {
	return &Registry{
		entries:  make(map[string]common.Address),
		eventBus: eventBus,
	}
}

// Set stores an address under a key, overwriting any previous value.
// The change notification is advisory, so it goes out on the bus's
// async path; sales re-sync their cached addresses on demand.
func (r *Registry) Set(key string, addr common.Address) {
	r.mu.Lock()
	previous := r.entries[key]
	r.entries[key] = addr
	r.mu.Unlock()
	if r.eventBus != nil {
		r.eventBus.PublishAsync(
			AddressChangedEventType,
			event.NewEvent(
				AddressChangedEventType,
				AddressChangedEvent{
					Key:      key,
					Previous: previous,
					Current:  addr,
				},
			),
		)
	}
}

// Get returns the address stored under a key
func (r *Registry) Get(key string) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.entries[key]
	if !ok {
		return common.ZeroAddress, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return addr, nil
}
