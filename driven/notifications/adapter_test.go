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

package notifications

import (
	"testing"

	"accessgov/core/model"
)

func TestNewNotificationsAdapterRejectsNilServiceAccountManager(t *testing.T) {
	if _, err := NewNotificationsAdapter("https://notifications.example.com", "app-1", "org-1", nil, nil); err == nil {
		t.Error("expected a nil service account manager to be rejected")
	}
}

// TestNotifyNoRecipientsNeverTouchesTransport confirms the empty-recipient
// guard short-circuits before any dispatch is attempted, so an adapter with
// no configured transport (nil serviceAccountManager, nil mailer) can still
// be called safely for recipient-less notifications.
func TestNotifyNoRecipientsNeverTouchesTransport(t *testing.T) {
	a := &Adapter{baseURL: "https://notifications.example.com", appID: "app-1", orgID: "org-1"}

	// Would panic on a.serviceAccountManager.MakeRequest if the empty-slice
	// guard in notify didn't short-circuit first.
	a.notify(nil, "title", "text", nil)
	a.notify([]string{}, "title", "text", nil)
}

// TestExpiringRoleOwnerNeverDispatches documents current behavior: a
// RoleGroupMap has no single user to notify (it associates a role group with
// a target group, not a user), so ExpiringRoleOwner always calls notify with
// a hardcoded empty recipient list and is consequently a no-op today.
func TestExpiringRoleOwnerNeverDispatches(t *testing.T) {
	a := &Adapter{baseURL: "https://notifications.example.com", appID: "app-1", orgID: "org-1"}

	roleMap := model.RoleGroupMap{ID: "map-1", RoleGroupID: "role-1", GroupID: "group-1", IsOwner: true}
	group := model.Group{ID: "group-1", Name: "Target"}

	// No transport configured; a panic here would mean ExpiringRoleOwner
	// stopped being a guaranteed no-op.
	a.ExpiringRoleOwner(roleMap, group)
}

func TestFallbackToEmailNilMailerIsNoOp(t *testing.T) {
	a := &Adapter{}
	a.fallbackToEmail([]string{"user-1"}, "title", "text")
}
