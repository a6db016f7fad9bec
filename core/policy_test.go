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

	"accessgov/core/model"
)

func TestIsAccessAdminFalseForUnknownActor(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	isAdmin, err := app.isAccessAdmin(nil, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if isAdmin {
		t.Error("expected a user with no Access app grant to not be an access admin")
	}
}

func TestIsAccessAdminEmptyActorID(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	isAdmin, err := app.isAccessAdmin(nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if isAdmin {
		t.Error("expected an empty actor ID to never be treated as an access admin")
	}
}

func TestIsAccessAdminTrueForAccessAppOwnerGroupMember(t *testing.T) {
	store := newFakeStorage()
	store.apps["app-1"] = model.App{ID: "app-1", Name: model.AccessAppName}
	store.groups["g-1"] = model.Group{ID: "g-1", Type: model.GroupTypeApp, AppID: strPtr("app-1"), IsOwner: true}
	store.grants["grant-1"] = model.Grant{ID: "grant-1", UserID: "user-1", GroupID: "g-1", IsOwner: true}

	app := newTestApplication(store)

	isAdmin, err := app.isAccessAdmin(nil, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !isAdmin {
		t.Error("expected a member of the Access app's owner group to be an access admin")
	}
}

func TestIsAccessAdminFalseForNonOwnerAppGroupMember(t *testing.T) {
	store := newFakeStorage()
	store.apps["app-1"] = model.App{ID: "app-1", Name: model.AccessAppName}
	store.groups["g-1"] = model.Group{ID: "g-1", Type: model.GroupTypeApp, AppID: strPtr("app-1"), IsOwner: false}
	store.grants["grant-1"] = model.Grant{ID: "grant-1", UserID: "user-1", GroupID: "g-1", IsOwner: true}

	app := newTestApplication(store)

	isAdmin, err := app.isAccessAdmin(nil, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if isAdmin {
		t.Error("expected membership in a non-owner AppGroup of the Access app to not grant admin bypass")
	}
}

func TestReasonGateRequiresNonEmptyReasonWhenPolicySet(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	policy := coalescedPolicy{RequireReason: true}

	gate, err := app.reasonGate(nil, policy, "user-1", "   ")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gate.Valid {
		t.Error("expected a blank reason to be denied when require_reason is set")
	}
}

func TestReasonGatePassesWhenPolicyNotSet(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	policy := coalescedPolicy{RequireReason: false}

	gate, err := app.reasonGate(nil, policy, "user-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !gate.Valid {
		t.Error("expected an empty reason to pass when require_reason is not set")
	}
}

func TestReasonGateRejectsVerbatimTemplateText(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	app.config.ReasonTemplateVerbatimBlock = "Please explain why you need access"
	policy := coalescedPolicy{RequireReason: true}

	gate, err := app.reasonGate(nil, policy, "user-1", "Please explain why you need access")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gate.Valid {
		t.Error("expected the unmodified template text to be rejected")
	}
}

func TestReasonGateAccessAdminBypassesRequireReason(t *testing.T) {
	store := newFakeStorage()
	store.apps["app-1"] = model.App{ID: "app-1", Name: model.AccessAppName}
	store.groups["g-1"] = model.Group{ID: "g-1", Type: model.GroupTypeApp, AppID: strPtr("app-1"), IsOwner: true}
	store.grants["grant-1"] = model.Grant{ID: "grant-1", UserID: "admin-1", GroupID: "g-1", IsOwner: true}

	app := newTestApplication(store)
	policy := coalescedPolicy{RequireReason: true}

	gate, err := app.reasonGate(nil, policy, "admin-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !gate.Valid {
		t.Error("expected an access admin to bypass the require_reason gate entirely")
	}
}

func TestSelfAddGateDeniesSelfAddWhenDisallowed(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	group := model.Group{ID: "g-1", Type: model.GroupTypePlain}
	policy := coalescedPolicy{DisallowSelfAddMember: true}

	gate, err := app.selfAddGate(nil, group, policy, "user-1", []string{"user-1"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gate.Valid {
		t.Error("expected self-add of membership to be denied when the group disallows it")
	}
}

func TestSelfAddGateAllowsAddingOthers(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	group := model.Group{ID: "g-1", Type: model.GroupTypePlain}
	policy := coalescedPolicy{DisallowSelfAddMember: true}

	gate, err := app.selfAddGate(nil, group, policy, "user-1", []string{"user-2"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !gate.Valid {
		t.Error("expected adding a different user to be unaffected by the self-add constraint")
	}
}

func strPtr(s string) *string { return &s }
