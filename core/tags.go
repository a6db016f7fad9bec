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
	"time"

	"accessgov/core/model"
	"accessgov/driven/storage"
)

// coalescedPolicy is the effective tag-derived policy for a group or role at
// evaluation time - the output of the tag constraint evaluator (§4.2).
type coalescedPolicy struct {
	MemberTimeLimit          *int
	OwnerTimeLimit           *int
	DisallowSelfAddMember    bool
	DisallowSelfAddOwner     bool
	RequireReason            bool
	OwnerCannotAddSelf       bool
}

// coalesceTags reduces a set of tags to a single effective policy: minimum
// positive integer across the duration constraints, logical OR across the
// boolean constraints. The evaluator is pure.
func coalesceTags(tags []model.Tag) coalescedPolicy {
	var policy coalescedPolicy
	for _, tag := range tags {
		if !tag.Enabled {
			continue
		}
		if v, ok := tag.IntConstraint(model.MemberTimeLimitConstraintKey); ok {
			policy.MemberTimeLimit = minPositiveInt(policy.MemberTimeLimit, v)
		}
		if v, ok := tag.IntConstraint(model.OwnerTimeLimitConstraintKey); ok {
			policy.OwnerTimeLimit = minPositiveInt(policy.OwnerTimeLimit, v)
		}
		if tag.BoolConstraint(model.DisallowSelfAddMembershipConstraint) {
			policy.DisallowSelfAddMember = true
		}
		if tag.BoolConstraint(model.DisallowSelfAddOwnershipConstraint) {
			policy.DisallowSelfAddOwner = true
		}
		if tag.BoolConstraint(model.RequireReasonConstraintKey) {
			policy.RequireReason = true
		}
		if tag.BoolConstraint(model.OwnerCannotAddSelfConstraintKey) {
			policy.OwnerCannotAddSelf = true
		}
	}
	return policy
}

func minPositiveInt(current *int, candidate int) *int {
	if candidate <= 0 {
		return current
	}
	if current == nil || candidate < *current {
		v := candidate
		return &v
	}
	return current
}

// groupTags loads a group's own active tag set.
func (app *Application) groupTags(ctx storage.TransactionContext, groupID string) ([]model.Tag, error) {
	maps, err := app.storage.FindGroupTags(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(maps))
	for _, m := range maps {
		ids = append(ids, m.TagID)
	}
	return app.storage.FindTags(ctx, ids)
}

// groupPolicy coalesces a group's own tags into an effective policy.
func (app *Application) groupPolicy(ctx storage.TransactionContext, groupID string) (coalescedPolicy, error) {
	tags, err := app.groupTags(ctx, groupID)
	if err != nil {
		return coalescedPolicy{}, err
	}
	return coalesceTags(tags), nil
}

// rolePolicy coalesces a role's own tags plus the tags of every group the
// role is currently associated with (member or owner), per §4.2's "a role's
// coalesced constraint is the set-union ..." rule.
func (app *Application) rolePolicy(ctx storage.TransactionContext, roleGroupID string) (coalescedPolicy, error) {
	tags, err := app.groupTags(ctx, roleGroupID)
	if err != nil {
		return coalescedPolicy{}, err
	}

	assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, roleGroupID)
	if err != nil {
		return coalescedPolicy{}, err
	}
	for _, assoc := range assocs {
		if !assoc.IsActiveAt(time.Now()) {
			continue
		}
		groupTags, err := app.groupTags(ctx, assoc.GroupID)
		if err != nil {
			return coalescedPolicy{}, err
		}
		tags = append(tags, groupTags...)
	}
	return coalesceTags(tags), nil
}

// clampEndingAt applies the time-limit coalescing rule: the effective
// member/owner time limit clamps a caller-requested ended_at to
// now + effective_limit for managed groups; for unmanaged groups the limit
// is advisory only and the caller's value passes through unchanged.
func clampEndingAt(requested *time.Time, limitSeconds *int, managed bool, now time.Time) *time.Time {
	if limitSeconds == nil || !managed {
		return requested
	}
	limit := now.Add(time.Duration(*limitSeconds) * time.Second)
	if requested == nil || requested.After(limit) {
		return &limit
	}
	return requested
}
