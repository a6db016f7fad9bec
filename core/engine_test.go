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

// TestAttachRoleLinksOwnerBranchDrawsFromNonOwnerMembers documents a
// preserved behavior (open question, §9): attachRoleLinks always fans out
// from the role's non-owner active members (it skips any activeMembers
// entry with IsOwner set), regardless of which branch - member-link or
// owner-link - is being attached. Attaching a role's *owner* branch to a
// group therefore grants the role's plain members ownership of the target
// group; the role's actual owners are never propagated through this path.
// Left as observed rather than silently fixed.
func TestAttachRoleLinksOwnerBranchDrawsFromNonOwnerMembers(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	role := model.Group{ID: "role-1", Type: model.GroupTypeRole, IsManaged: false}
	target := model.Group{ID: "group-1", Type: model.GroupTypePlain, IsManaged: false}
	store.groups[target.ID] = target

	// role-1 has one plain member and one owner.
	store.grants["member-grant"] = model.Grant{ID: "member-grant", UserID: "plain-member", GroupID: role.ID, IsOwner: false}
	store.grants["owner-grant"] = model.Grant{ID: "owner-grant", UserID: "role-owner", GroupID: role.ID, IsOwner: true}

	now := time.Now()

	// Attach the role's owner branch (isOwner=true) to the target group.
	_, grants, _, err := app.attachRoleLinks(nil, role, []string{target.ID}, true, nil, "actor-1", "test", now)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(grants) != 1 {
		t.Fatalf("expected exactly one derived grant, got %d", len(grants))
	}
	got := grants[0]

	if got.UserID != "plain-member" {
		t.Errorf("preserved behavior: expected the derived owner grant to be fanned out from the role's "+
			"non-owner member (plain-member), got %s - the role's actual owner (role-owner) is never used "+
			"as the source of owner-branch fan-out", got.UserID)
	}
	if !got.IsOwner {
		t.Error("expected the derived grant to carry IsOwner=true for the owner-branch attachment")
	}
}

func TestAttachRoleLinksMemberBranchUsesNonOwnerMembers(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	role := model.Group{ID: "role-1", Type: model.GroupTypeRole}
	target := model.Group{ID: "group-1", Type: model.GroupTypePlain}
	store.groups[target.ID] = target

	store.grants["member-grant"] = model.Grant{ID: "member-grant", UserID: "plain-member", GroupID: role.ID, IsOwner: false}
	store.grants["owner-grant"] = model.Grant{ID: "owner-grant", UserID: "role-owner", GroupID: role.ID, IsOwner: true}

	now := time.Now()

	_, grants, _, err := app.attachRoleLinks(nil, role, []string{target.ID}, false, nil, "actor-1", "test", now)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if len(grants) != 1 {
		t.Fatalf("expected exactly one derived grant, got %d", len(grants))
	}
	if grants[0].UserID != "plain-member" {
		t.Errorf("expected the member-branch attachment to fan out from the role's non-owner member, got %s", grants[0].UserID)
	}
	if grants[0].IsOwner {
		t.Error("expected the derived grant to carry IsOwner=false for the member-branch attachment")
	}
}
