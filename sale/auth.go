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
	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

// Authorization is the resolved capability set of a caller against one
// sale instance. It is computed per call from the sale's cached
// trusted addresses, so a registry re-sync takes effect immediately.
type Authorization struct {
	Caller   common.Address
	operator bool
	admin    bool
}

func (a Authorization) IsOperator() bool {
	return a.operator
}

func (a Authorization) IsProjectAdmin() bool {
	return a.admin
}

// authorize resolves a caller's roles. Callers must hold the sale
// mutex.
func (s *Sale) authorize(caller common.Address) Authorization {
	return Authorization{
		Caller:   caller,
		operator: !caller.IsZero() && caller == s.addresses.Operator,
		admin:    !caller.IsZero() && caller == s.config.ProjectAdmin,
	}
}
