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

func intConstraintTag(key model.ConstraintKey, value int) model.Tag {
	return model.Tag{Enabled: true, Constraints: map[model.ConstraintKey]interface{}{key: value}}
}

func boolConstraintTag(key model.ConstraintKey) model.Tag {
	return model.Tag{Enabled: true, Constraints: map[model.ConstraintKey]interface{}{key: true}}
}

func TestCoalesceTagsMinimumTimeLimit(t *testing.T) {
	tags := []model.Tag{
		intConstraintTag(model.MemberTimeLimitConstraintKey, 3600),
		intConstraintTag(model.MemberTimeLimitConstraintKey, 1800),
		intConstraintTag(model.MemberTimeLimitConstraintKey, 7200),
	}

	policy := coalesceTags(tags)

	if policy.MemberTimeLimit == nil {
		t.Fatal("expected MemberTimeLimit to be set")
	}
	if *policy.MemberTimeLimit != 1800 {
		t.Errorf("expected the minimum positive limit 1800, got %d", *policy.MemberTimeLimit)
	}
}

func TestCoalesceTagsIgnoresDisabledTags(t *testing.T) {
	disabled := intConstraintTag(model.MemberTimeLimitConstraintKey, 60)
	disabled.Enabled = false

	policy := coalesceTags([]model.Tag{disabled})

	if policy.MemberTimeLimit != nil {
		t.Errorf("expected a disabled tag's constraint to be ignored, got %v", *policy.MemberTimeLimit)
	}
}

func TestCoalesceTagsIgnoresNonPositiveLimits(t *testing.T) {
	tags := []model.Tag{
		intConstraintTag(model.MemberTimeLimitConstraintKey, 0),
		intConstraintTag(model.MemberTimeLimitConstraintKey, -5),
	}

	policy := coalesceTags(tags)

	if policy.MemberTimeLimit != nil {
		t.Errorf("expected non-positive limits to be ignored entirely, got %v", *policy.MemberTimeLimit)
	}
}

func TestCoalesceTagsBooleanConstraintsOR(t *testing.T) {
	tags := []model.Tag{
		boolConstraintTag(model.DisallowSelfAddMembershipConstraint),
		intConstraintTag(model.MemberTimeLimitConstraintKey, 100),
	}

	policy := coalesceTags(tags)

	if !policy.DisallowSelfAddMember {
		t.Error("expected DisallowSelfAddMember to be true once any tag sets it")
	}
	if policy.DisallowSelfAddOwner {
		t.Error("expected DisallowSelfAddOwner to stay false when no tag sets it")
	}
}

func TestCoalesceTagsEmptySet(t *testing.T) {
	policy := coalesceTags(nil)

	if policy.MemberTimeLimit != nil || policy.OwnerTimeLimit != nil {
		t.Error("expected an empty tag set to coalesce to the zero policy")
	}
	if policy.DisallowSelfAddMember || policy.DisallowSelfAddOwner || policy.RequireReason || policy.OwnerCannotAddSelf {
		t.Error("expected an empty tag set to coalesce to every boolean constraint false")
	}
}

func TestClampEndingAtUnmanagedPassesThrough(t *testing.T) {
	now := time.Now()
	requested := now.Add(48 * time.Hour)
	limit := 3600

	got := clampEndingAt(&requested, &limit, false, now)

	if got == nil || !got.Equal(requested) {
		t.Errorf("expected unmanaged groups to ignore the limit, got %v", got)
	}
}

func TestClampEndingAtManagedNilLimitPassesThrough(t *testing.T) {
	now := time.Now()
	requested := now.Add(48 * time.Hour)

	got := clampEndingAt(&requested, nil, true, now)

	if got == nil || !got.Equal(requested) {
		t.Errorf("expected a nil limit to leave the requested value unchanged, got %v", got)
	}
}

func TestClampEndingAtManagedClampsRequestBeyondLimit(t *testing.T) {
	now := time.Now()
	requested := now.Add(48 * time.Hour)
	limitSeconds := 3600

	got := clampEndingAt(&requested, &limitSeconds, true, now)

	want := now.Add(time.Hour)
	if got == nil {
		t.Fatal("expected a clamped value, got nil")
	}
	if got.Sub(want) > time.Second || want.Sub(*got) > time.Second {
		t.Errorf("expected clamp to ~%v, got %v", want, *got)
	}
}

func TestClampEndingAtManagedNilRequestUsesLimit(t *testing.T) {
	now := time.Now()
	limitSeconds := 1800

	got := clampEndingAt(nil, &limitSeconds, true, now)

	want := now.Add(30 * time.Minute)
	if got == nil {
		t.Fatal("expected a computed limit, got nil")
	}
	if got.Sub(want) > time.Second || want.Sub(*got) > time.Second {
		t.Errorf("expected limit-derived value ~%v, got %v", want, *got)
	}
}

func TestClampEndingAtManagedRequestWithinLimitPassesThrough(t *testing.T) {
	now := time.Now()
	requested := now.Add(10 * time.Minute)
	limitSeconds := 3600

	got := clampEndingAt(&requested, &limitSeconds, true, now)

	if got == nil || !got.Equal(requested) {
		t.Errorf("expected a request within the limit to pass through unchanged, got %v", got)
	}
}
