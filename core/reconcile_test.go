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

package core

import (
	"testing"
	"time"

	"accessgov/core/model"
)

func TestReconcileEndingAtNilMembershipAlwaysNil(t *testing.T) {
	roleMapEnd := time.Now().Add(time.Hour)

	got := reconcileEndingAt(&roleMapEnd, nil)

	if got != nil {
		t.Errorf("expected a nil membership end to produce a nil result, got %v", *got)
	}
}

func TestReconcileEndingAtNilRoleMapUsesMembership(t *testing.T) {
	membershipEnd := time.Now().Add(time.Hour)

	got := reconcileEndingAt(nil, &membershipEnd)

	if got == nil || !got.Equal(membershipEnd) {
		t.Errorf("expected a nil role-map end to fall back to the membership end, got %v", got)
	}
}

func TestReconcileEndingAtEarlierOfTheTwo(t *testing.T) {
	now := time.Now()
	roleMapEnd := now.Add(time.Hour)
	membershipEnd := now.Add(2 * time.Hour)

	got := reconcileEndingAt(&roleMapEnd, &membershipEnd)

	if got == nil || !got.Equal(roleMapEnd) {
		t.Errorf("expected the earlier role-map end to win, got %v", got)
	}
}

// TestReconcileEndingAtDivergesFromMinTimeOnNilMembership documents the
// preserved divergence between this repair path and the live engine's
// model.MinTime: MinTime treats a nil end as +Inf, so a non-nil role-map end
// wins. reconcileEndingAt instead treats a nil membership end as the
// earliest possible value and short-circuits to nil. Left as observed, not
// silently aligned with MinTime.
func TestReconcileEndingAtDivergesFromMinTimeOnNilMembership(t *testing.T) {
	roleMapEnd := time.Now().Add(time.Hour)

	reconciled := reconcileEndingAt(&roleMapEnd, nil)
	liveEngine := model.MinTime(&roleMapEnd, nil)

	if (reconciled == nil) == (liveEngine == nil) {
		t.Fatal("expected the two results to disagree on nil-ness")
	}
	if reconciled != nil {
		t.Errorf("reconciler repair path: expected nil, got %v", *reconciled)
	}
	if liveEngine == nil || !liveEngine.Equal(roleMapEnd) {
		t.Errorf("live engine path (model.MinTime): expected the role-map end, got %v", liveEngine)
	}
}
