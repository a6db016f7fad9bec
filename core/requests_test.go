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

func TestResolveApproversPrefersGroupOwners(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	group := model.Group{ID: "g-1", Type: model.GroupTypePlain}
	store.grants["owner-1"] = model.Grant{ID: "owner-1", UserID: "owner-user", GroupID: "g-1", IsOwner: true}
	store.grants["member-1"] = model.Grant{ID: "member-1", UserID: "member-user", GroupID: "g-1", IsOwner: false}

	approvers, err := app.resolveApprovers(nil, group, "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(approvers) != 1 || approvers[0] != "owner-user" {
		t.Errorf("expected the group's own owner to be the sole approver, got %v", approvers)
	}
}

func TestResolveApproversExcludesRequester(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	group := model.Group{ID: "g-1", Type: model.GroupTypePlain}
	store.grants["owner-1"] = model.Grant{ID: "owner-1", UserID: "requester", GroupID: "g-1", IsOwner: true}

	approvers, err := app.resolveApprovers(nil, group, "requester")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(approvers) != 0 {
		t.Errorf("expected the requester's own ownership to be excluded, got %v", approvers)
	}
}

func TestResolveApproversFallsThroughToAppManagers(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	// Target group has no owners of its own.
	group := model.Group{ID: "g-1", Type: model.GroupTypeApp, AppID: strPtr("app-1")}

	// app-1's owner group has one owner.
	store.groups["owner-group"] = model.Group{ID: "owner-group", Type: model.GroupTypeApp, AppID: strPtr("app-1"), IsOwner: true}
	store.grants["mgr-grant"] = model.Grant{ID: "mgr-grant", UserID: "app-manager", GroupID: "owner-group", IsOwner: true}

	approvers, err := app.resolveApprovers(nil, group, "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(approvers) != 1 || approvers[0] != "app-manager" {
		t.Errorf("expected the App's manager tier to resolve when the group has no owners, got %v", approvers)
	}
}

func TestResolveApproversFallsThroughToAccessAdminsWhenNoAppManagers(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	group := model.Group{ID: "g-1", Type: model.GroupTypePlain}

	store.apps["access-app"] = model.App{ID: "access-app", Name: model.AccessAppName}
	store.groups["access-owner-group"] = model.Group{ID: "access-owner-group", Type: model.GroupTypeApp, AppID: strPtr("access-app"), IsOwner: true}
	store.grants["admin-grant"] = model.Grant{ID: "admin-grant", UserID: "access-admin", GroupID: "access-owner-group", IsOwner: true}

	approvers, err := app.resolveApprovers(nil, group, "")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(approvers) != 1 || approvers[0] != "access-admin" {
		t.Errorf("expected the reserved Access app's admins to be the last-resort tier, got %v", approvers)
	}
}

func TestCreateAccessRequestRejectsUnmanagedGroup(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	store.groups["g-1"] = model.Group{ID: "g-1", IsManaged: false}
	store.users["user-1"] = model.User{ID: "user-1"}

	_, err := app.CreateAccessRequest("g-1", "user-1", false, "reason", nil)
	if err == nil {
		t.Fatal("expected requesting access to an unmanaged group to fail")
	}
}

func TestCreateAccessRequestHappyPath(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	store.groups["g-1"] = model.Group{ID: "g-1", IsManaged: true}
	store.users["user-1"] = model.User{ID: "user-1"}
	store.grants["owner-1"] = model.Grant{ID: "owner-1", UserID: "owner-user", GroupID: "g-1", IsOwner: true}

	req, err := app.CreateAccessRequest("g-1", "user-1", false, "I need this for my job", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if req.Status != model.RequestStatusPending {
		t.Errorf("expected a freshly created request to be pending, got %s", req.Status)
	}
	if _, ok := store.accessReqs[req.ID]; !ok {
		t.Error("expected the request to be persisted")
	}
}

func TestCreateAccessRequestRejectsDuplicatePending(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)
	store.groups["g-1"] = model.Group{ID: "g-1", IsManaged: true}
	store.users["user-1"] = model.User{ID: "user-1"}
	store.accessReqs["existing"] = model.AccessRequest{ID: "existing", RequesterID: "user-1", RequestedGroupID: "g-1", Status: model.RequestStatusPending}

	_, err := app.CreateAccessRequest("g-1", "user-1", false, "reason", nil)
	if err == nil {
		t.Fatal("expected a second pending request for the same group/requester to be rejected")
	}
}
