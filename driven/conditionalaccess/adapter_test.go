// Copyright 2022 Board of Trustees of the University of Illinois.
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

package conditionalaccess

import (
	"testing"

	"accessgov/core/model"
)

// TestEvaluateAccessRequestNoTransportFallsThrough confirms a hook with no
// configured service account manager returns a "not decided" zero-value
// decision instead of panicking, so the caller's normal approval lifecycle
// always takes over when the policy engine isn't reachable.
func TestEvaluateAccessRequestNoTransportFallsThrough(t *testing.T) {
	a := NewConditionalAccessAdapter("https://policy.example.com", nil)

	decision := a.EvaluateAccessRequest(model.AccessRequest{ID: "req-1"}, model.Group{ID: "g-1"}, nil, model.User{ID: "user-1"})
	if decision.Decided {
		t.Error("expected a transport failure to yield an undecided result")
	}
}

func TestEvaluateRoleRequestNoTransportFallsThrough(t *testing.T) {
	a := NewConditionalAccessAdapter("https://policy.example.com", nil)

	decision := a.EvaluateRoleRequest(model.RoleRequest{ID: "req-1"}, model.Group{ID: "g-1"}, nil, model.User{ID: "user-1"})
	if decision.Decided {
		t.Error("expected a transport failure to yield an undecided result")
	}
	if decision.Approved {
		t.Error("expected a zero-value decision to default Approved to false")
	}
}
