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

package model

import (
	"testing"
	"time"
)

func TestMinTimeBothNilIsNil(t *testing.T) {
	if got := MinTime(nil, nil); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}

func TestMinTimeNilTreatedAsInfinity(t *testing.T) {
	now := time.Now()

	if got := MinTime(nil, &now); got == nil || !got.Equal(now) {
		t.Errorf("expected the non-nil value to win over nil, got %v", got)
	}
	if got := MinTime(&now, nil); got == nil || !got.Equal(now) {
		t.Errorf("expected the non-nil value to win over nil, got %v", got)
	}
}

func TestMinTimeEarlierWins(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	got := MinTime(&earlier, &later)
	if got == nil || !got.Equal(earlier) {
		t.Errorf("expected the earlier time to win, got %v", got)
	}

	got = MinTime(&later, &earlier)
	if got == nil || !got.Equal(earlier) {
		t.Errorf("expected the earlier time to win regardless of argument order, got %v", got)
	}
}

func TestGrantIsActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	unbounded := Grant{}
	if !unbounded.IsActiveAt(now) {
		t.Error("expected a grant with no EndedAt to be active")
	}

	ended := Grant{EndedAt: &past}
	if ended.IsActiveAt(now) {
		t.Error("expected a grant ended in the past to be inactive")
	}

	stillActive := Grant{EndedAt: &future}
	if !stillActive.IsActiveAt(now) {
		t.Error("expected a grant ending in the future to still be active")
	}
}

func TestGrantIsDirectAndIsDerived(t *testing.T) {
	direct := Grant{}
	if !direct.IsDirect() || direct.IsDerived() {
		t.Error("expected a grant with no RoleGroupMapID to be direct, not derived")
	}

	roleMapID := "role-map-1"
	derived := Grant{RoleGroupMapID: &roleMapID}
	if derived.IsDirect() || !derived.IsDerived() {
		t.Error("expected a grant with a RoleGroupMapID to be derived, not direct")
	}
}
