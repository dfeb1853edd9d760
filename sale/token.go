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
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

// Token is the external transfer capability for the bid and ask
// assets. Implementations may fail on any call; the engine treats
// every failure as a hard abort and rolls the surrounding state
// mutation back.
type Token interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(
		spender, from, to common.Address,
		amount *big.Int,
	) error
	BalanceOf(who common.Address) *big.Int
	TotalSupply() *big.Int
}
