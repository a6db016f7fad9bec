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
)

// Read-only accessors for the HTTP driver. Every call goes straight to
// storage with a nil TransactionContext - none of these need the
// multi-document atomicity the mutation paths in engine.go/groups.go/
// requests.go require.

// GetUser returns a user by ID, or nil if none exists.
func (app *Application) GetUser(id string) (*model.User, error) {
	return app.storage.FindUser(nil, id)
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (app *Application) GetUserByEmail(email string) (*model.User, error) {
	return app.storage.FindUserByEmail(nil, email)
}

// GetApp returns an app by ID, or nil if none exists.
func (app *Application) GetApp(id string) (*model.App, error) {
	return app.storage.FindApp(nil, id)
}

// GetApps returns every app.
func (app *Application) GetApps() ([]model.App, error) {
	return app.storage.FindApps(nil)
}

// GetGroup returns a group by ID, or nil if none exists.
func (app *Application) GetGroup(id string) (*model.Group, error) {
	return app.storage.FindGroup(nil, id)
}

// GetGroups returns groups, optionally filtered by type and/or owning app.
func (app *Application) GetGroups(groupType *model.GroupType, appID *string) ([]model.Group, error) {
	return app.storage.FindGroups(nil, groupType, appID)
}

// GetGroupTags returns the tags directly attached to a group (§4.4).
func (app *Application) GetGroupTags(groupID string) ([]model.Tag, error) {
	return app.groupTags(nil, groupID)
}

// GetUserGrants returns every active grant a user currently holds.
func (app *Application) GetUserGrants(userID string) ([]model.Grant, error) {
	return app.storage.FindActiveGrantsForUser(nil, userID)
}

// GetGroupGrants returns every active grant currently held against a group.
func (app *Application) GetGroupGrants(groupID string) ([]model.Grant, error) {
	return app.storage.FindActiveGrantsForGroup(nil, groupID)
}

// GetAccessRequest returns an access request by ID, or nil if none exists.
func (app *Application) GetAccessRequest(id string) (*model.AccessRequest, error) {
	return app.storage.FindAccessRequest(nil, id)
}

// GetPendingAccessRequestsForGroup returns the pending access requests an
// approver for groupID needs to act on.
func (app *Application) GetPendingAccessRequestsForGroup(groupID string) ([]model.AccessRequest, error) {
	return app.storage.FindPendingAccessRequestsForGroup(nil, groupID)
}

// GetPendingAccessRequestsForUser returns a requester's own open requests.
func (app *Application) GetPendingAccessRequestsForUser(userID string) ([]model.AccessRequest, error) {
	return app.storage.FindPendingAccessRequestsForUser(nil, userID)
}

// GetRoleRequest returns a role request by ID, or nil if none exists.
func (app *Application) GetRoleRequest(id string) (*model.RoleRequest, error) {
	return app.storage.FindRoleRequest(nil, id)
}

// GetPendingRoleRequestsForUser returns a requester's own open role requests.
func (app *Application) GetPendingRoleRequestsForUser(userID string) ([]model.RoleRequest, error) {
	return app.storage.FindPendingRoleRequestsForUser(nil, userID)
}

// GetGroupRequest returns a group-creation request by ID, or nil if none exists.
func (app *Application) GetGroupRequest(id string) (*model.GroupRequest, error) {
	return app.storage.FindGroupRequest(nil, id)
}

// GetSyncConfigs returns every reconciliation sweep's configuration row.
func (app *Application) GetSyncConfigs() ([]model.SyncConfig, error) {
	return app.storage.FindSyncConfigs(nil)
}

// EnsureUser materializes a user record on first sign-in: the IdP is the
// source of truth for identity, so a token the HTTP driver has already
// validated is enough to just-in-time provision a row keyed by its subject.
func (app *Application) EnsureUser(id string, email string, displayName string) (*model.User, error) {
	existing, err := app.storage.FindUser(nil, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := model.User{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		DateCreated: time.Now().UTC(),
	}
	if err := app.storage.SaveUser(nil, user); err != nil {
		return nil, err
	}
	return &user, nil
}
