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

package vesting

import (
	"math/big"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBeneficiary = common.MustHexToAddress(
	"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
)

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{Start: 100, Duration: 1000}.Validate())
	assert.NoError(
		t,
		Schedule{
			Start:         100,
			Duration:      1000,
			CliffDuration: 1000,
			EpochDuration: 100,
		}.Validate(),
	)

	assert.ErrorIs(t, Schedule{}.Validate(), ErrZeroDuration)
	assert.ErrorIs(
		t,
		Schedule{Duration: -1}.Validate(),
		ErrZeroDuration,
	)
	assert.ErrorIs(
		t,
		Schedule{Duration: 100, CliffDuration: 101}.Validate(),
		ErrCliffTooLong,
	)
	assert.ErrorIs(
		t,
		Schedule{Duration: 100, EpochDuration: 101}.Validate(),
		ErrEpochTooLong,
	)
}

func TestVestedAtLinear(t *testing.T) {
	schedule := Schedule{Start: 1000, Duration: 1000}
	total := big.NewInt(10_000)

	// Before start: nothing
	assert.Zero(t, schedule.VestedAt(total, 999).Sign())
	// At start: zero elapsed
	assert.Zero(t, schedule.VestedAt(total, 1000).Sign())
	// Halfway
	assert.Equal(t, int64(5_000), schedule.VestedAt(total, 1500).Int64())
	// At end and beyond: everything
	assert.Equal(t, int64(10_000), schedule.VestedAt(total, 2000).Int64())
	assert.Equal(t, int64(10_000), schedule.VestedAt(total, 9999).Int64())
}

func TestVestedAtCliff(t *testing.T) {
	schedule := Schedule{
		Start:         1000,
		Duration:      1000,
		CliffDuration: 400,
	}
	total := big.NewInt(10_000)

	// One second before the cliff: nothing
	assert.Zero(t, schedule.VestedAt(total, 1399).Sign())
	// At the cliff the full accrued-to-date amount unlocks at once
	assert.Equal(t, int64(4_000), schedule.VestedAt(total, 1400).Int64())
	assert.Equal(t, int64(7_000), schedule.VestedAt(total, 1700).Int64())
}

func TestVestedAtEpochQuantization(t *testing.T) {
	schedule := Schedule{
		Start:         0,
		Duration:      1000,
		EpochDuration: 100,
	}
	total := big.NewInt(10_000)

	// Mid-epoch times truncate to the last epoch boundary
	assert.Equal(t, int64(1_000), schedule.VestedAt(total, 199).Int64())
	assert.Equal(t, int64(2_000), schedule.VestedAt(total, 200).Int64())
	assert.Equal(t, int64(2_000), schedule.VestedAt(total, 299).Int64())
}

func TestVestedAtEpochBeforeCliff(t *testing.T) {
	// Quantization must not release anything before the cliff
	schedule := Schedule{
		Start:         0,
		Duration:      1000,
		CliffDuration: 250,
		EpochDuration: 100,
	}
	total := big.NewInt(10_000)
	// now=260 is past the cliff, but truncation yields elapsed=200
	assert.Zero(t, schedule.VestedAt(total, 260).Sign())
	assert.Equal(t, int64(3_000), schedule.VestedAt(total, 300).Int64())
}

func TestVestedAtMonotonic(t *testing.T) {
	schedule := Schedule{
		Start:         500,
		Duration:      10_000,
		CliffDuration: 1_000,
		EpochDuration: 250,
	}
	total := big.NewInt(1_234_567)
	prev := new(big.Int)
	for now := int64(0); now <= 12_000; now += 37 {
		vested := schedule.VestedAt(total, now)
		assert.LessOrEqual(
			t,
			prev.Cmp(vested),
			0,
			"vested decreased at t=%d",
			now,
		)
		assert.LessOrEqual(t, vested.Cmp(total), 0)
		prev = vested
	}
	assert.Zero(t, prev.Cmp(total))
}

func TestNewEscrowValidation(t *testing.T) {
	schedule := Schedule{Start: 0, Duration: 100}

	_, err := NewEscrow(common.ZeroAddress, schedule, big.NewInt(1))
	assert.ErrorIs(t, err, ErrZeroBeneficiary)

	_, err = NewEscrow(testBeneficiary, Schedule{}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrZeroDuration)

	_, err = NewEscrow(testBeneficiary, schedule, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = NewEscrow(testBeneficiary, schedule, nil)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestEscrowRelease(t *testing.T) {
	schedule := Schedule{Start: 0, Duration: 1000}
	escrow, err := NewEscrow(testBeneficiary, schedule, big.NewInt(10_000))
	require.NoError(t, err)

	// Nothing vested yet
	assert.Zero(t, escrow.Release(0).Sign())

	// Release at halfway
	released := escrow.Release(500)
	assert.Equal(t, int64(5_000), released.Int64())
	assert.Equal(t, int64(5_000), escrow.Released().Int64())

	// Releasing again at the same time is a no-op
	assert.Zero(t, escrow.Release(500).Sign())

	// Remainder at the end
	released = escrow.Release(1000)
	assert.Equal(t, int64(5_000), released.Int64())
	assert.Zero(t, escrow.Releasable(2000).Sign())
}

func TestEscrowUnrelease(t *testing.T) {
	schedule := Schedule{Start: 0, Duration: 1000}
	escrow, err := NewEscrow(testBeneficiary, schedule, big.NewInt(10_000))
	require.NoError(t, err)

	released := escrow.Release(500)
	require.Equal(t, int64(5_000), released.Int64())

	// Compensating a failed transfer makes the amount releasable again
	escrow.Unrelease(released)
	assert.Zero(t, escrow.Released().Sign())
	assert.Equal(t, int64(5_000), escrow.Releasable(500).Int64())

	// Nil and non-positive amounts are ignored
	escrow.Unrelease(nil)
	escrow.Unrelease(big.NewInt(-5))
	assert.Zero(t, escrow.Released().Sign())
}

func TestMemoryFactory(t *testing.T) {
	factory := NewMemoryFactory()
	schedule := Schedule{Start: 0, Duration: 100}

	escrow, err := factory.Create(testBeneficiary, schedule, big.NewInt(500))
	require.NoError(t, err)
	require.NotNil(t, escrow)
	assert.Equal(t, testBeneficiary, escrow.Beneficiary())

	got, ok := factory.Get(testBeneficiary)
	require.True(t, ok)
	assert.Same(t, escrow, got)

	// Duplicate creation is refused
	_, err = factory.Create(testBeneficiary, schedule, big.NewInt(500))
	assert.ErrorIs(t, err, ErrEscrowExists)

	_, ok = factory.Get(common.MustHexToAddress(
		"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	))
	assert.False(t, ok)
}
