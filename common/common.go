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

package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// AddressLength is the byte length of protocol addresses
const AddressLength = 20

// Address identifies an investor, project, operator, or asset contract
type Address [AddressLength]byte

// ZeroAddress is the all-zero address, used as the "unset" sentinel
var ZeroAddress = Address{}

var ErrInvalidAddress = errors.New("invalid address")

// HexToAddress decodes a hex string (with or without 0x prefix) into
// an Address
func HexToAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLength {
		return addr, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidAddress,
			AddressLength,
			len(raw),
		)
	}
	copy(addr[:], raw)
	return addr, nil
}

// MustHexToAddress is HexToAddress for statically known inputs; it
// panics on malformed hex
func MustHexToAddress(s string) Address {
	addr, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero returns true for the unset sentinel address
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Big returns the address interpreted as a big-endian integer. The
// sealed-bid codec uses this as the per-investor salt scalar.
func (a Address) Big() *big.Int {
	return new(big.Int).SetBytes(a[:])
}

// CloneAmount copies a big.Int amount, mapping nil to zero. Amounts
// that cross an API boundary are always cloned so callers cannot
// mutate internal accounting state.
func CloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
