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

// fakeStorage is a minimal in-memory Storage double for policy/engine/
// reconciler tests - just enough of each Find*/Insert*/Update* method to
// exercise the call paths under test, not a full storage reimplementation.
type fakeStorage struct {
	users         map[string]model.User
	apps          map[string]model.App
	groups        map[string]model.Group
	tags          map[string]model.Tag
	groupTags     []model.GroupTagMap
	appTags       []model.AppTagMap
	grants        map[string]model.Grant
	roleGroupMaps map[string]model.RoleGroupMap
	accessReqs    map[string]model.AccessRequest
	roleReqs      map[string]model.RoleRequest
	groupReqs     map[string]model.GroupRequest
	syncConfigs   []model.SyncConfig
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:         map[string]model.User{},
		apps:          map[string]model.App{},
		groups:        map[string]model.Group{},
		tags:          map[string]model.Tag{},
		grants:        map[string]model.Grant{},
		roleGroupMaps: map[string]model.RoleGroupMap{},
		accessReqs:    map[string]model.AccessRequest{},
		roleReqs:      map[string]model.RoleRequest{},
		groupReqs:     map[string]model.GroupRequest{},
	}
}

func (f *fakeStorage) PerformTransaction(transaction func(context storage.TransactionContext) error) error {
	return transaction(nil)
}

func (f *fakeStorage) FindUser(ctx storage.TransactionContext, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindUserByEmail(ctx storage.TransactionContext, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindUsers(ctx storage.TransactionContext, ids []string) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindAllUsers(ctx storage.TransactionContext) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}
func (f *fakeStorage) SaveUser(ctx storage.TransactionContext, user model.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStorage) FindApp(ctx storage.TransactionContext, id string) (*model.App, error) {
	if a, ok := f.apps[id]; ok {
		return &a, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindAppByName(ctx storage.TransactionContext, name string) (*model.App, error) {
	for _, a := range f.apps {
		if a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindApps(ctx storage.TransactionContext) ([]model.App, error) {
	var out []model.App
	for _, a := range f.apps {
		out = append(out, a)
	}
	return out, nil
}
func (f *fakeStorage) InsertApp(ctx storage.TransactionContext, app model.App) error {
	f.apps[app.ID] = app
	return nil
}
func (f *fakeStorage) UpdateApp(ctx storage.TransactionContext, app model.App) error {
	f.apps[app.ID] = app
	return nil
}

func (f *fakeStorage) FindGroup(ctx storage.TransactionContext, id string) (*model.Group, error) {
	if g, ok := f.groups[id]; ok {
		return &g, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindGroupByName(ctx storage.TransactionContext, name string) (*model.Group, error) {
	for _, g := range f.groups {
		if g.Name == name {
			return &g, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindGroups(ctx storage.TransactionContext, groupType *model.GroupType, appID *string) ([]model.Group, error) {
	var out []model.Group
	for _, g := range f.groups {
		if groupType != nil && g.Type != *groupType {
			continue
		}
		if appID != nil && (g.AppID == nil || *g.AppID != *appID) {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}
func (f *fakeStorage) InsertGroup(ctx storage.TransactionContext, group model.Group) error {
	f.groups[group.ID] = group
	return nil
}
func (f *fakeStorage) UpdateGroup(ctx storage.TransactionContext, group model.Group) error {
	f.groups[group.ID] = group
	return nil
}

func (f *fakeStorage) FindTag(ctx storage.TransactionContext, id string) (*model.Tag, error) {
	if t, ok := f.tags[id]; ok {
		return &t, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindTagByName(ctx storage.TransactionContext, name string) (*model.Tag, error) {
	for _, t := range f.tags {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindTags(ctx storage.TransactionContext, ids []string) ([]model.Tag, error) {
	var out []model.Tag
	for _, id := range ids {
		if t, ok := f.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertTag(ctx storage.TransactionContext, tag model.Tag) error {
	f.tags[tag.ID] = tag
	return nil
}
func (f *fakeStorage) DeleteTag(ctx storage.TransactionContext, id string) error {
	delete(f.tags, id)
	return nil
}

func (f *fakeStorage) FindGroupTags(ctx storage.TransactionContext, groupID string) ([]model.GroupTagMap, error) {
	var out []model.GroupTagMap
	for _, m := range f.groupTags {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertGroupTag(ctx storage.TransactionContext, gtm model.GroupTagMap) error {
	f.groupTags = append(f.groupTags, gtm)
	return nil
}
func (f *fakeStorage) DeleteGroupTag(ctx storage.TransactionContext, groupID string, tagID string) error {
	var kept []model.GroupTagMap
	for _, m := range f.groupTags {
		if m.GroupID == groupID && m.TagID == tagID {
			continue
		}
		kept = append(kept, m)
	}
	f.groupTags = kept
	return nil
}

func (f *fakeStorage) FindAppTags(ctx storage.TransactionContext, appID string) ([]model.AppTagMap, error) {
	var out []model.AppTagMap
	for _, m := range f.appTags {
		if m.AppID == appID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertAppTag(ctx storage.TransactionContext, atm model.AppTagMap) error {
	f.appTags = append(f.appTags, atm)
	return nil
}
func (f *fakeStorage) DeleteAppTag(ctx storage.TransactionContext, appID string, tagID string) error {
	var kept []model.AppTagMap
	for _, m := range f.appTags {
		if m.AppID == appID && m.TagID == tagID {
			continue
		}
		kept = append(kept, m)
	}
	f.appTags = kept
	return nil
}

func (f *fakeStorage) FindGrant(ctx storage.TransactionContext, id string) (*model.Grant, error) {
	if g, ok := f.grants[id]; ok {
		return &g, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindActiveGrant(ctx storage.TransactionContext, userID string, groupID string, isOwner bool) (*model.Grant, error) {
	now := time.Now()
	for _, g := range f.grants {
		if g.UserID == userID && g.GroupID == groupID && g.IsOwner == isOwner && g.IsActiveAt(now) {
			return &g, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindActiveGrantsForGroup(ctx storage.TransactionContext, groupID string) ([]model.Grant, error) {
	now := time.Now()
	var out []model.Grant
	for _, g := range f.grants {
		if g.GroupID == groupID && g.IsActiveAt(now) {
			out = append(out, g)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindActiveGrantsForUser(ctx storage.TransactionContext, userID string) ([]model.Grant, error) {
	now := time.Now()
	var out []model.Grant
	for _, g := range f.grants {
		if g.UserID == userID && g.IsActiveAt(now) {
			out = append(out, g)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindGrantsEndingBetween(ctx storage.TransactionContext, from time.Time, to time.Time) ([]model.Grant, error) {
	var out []model.Grant
	for _, g := range f.grants {
		if g.EndedAt != nil && !g.EndedAt.Before(from) && !g.EndedAt.After(to) {
			out = append(out, g)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertGrant(ctx storage.TransactionContext, grant model.Grant) error {
	f.grants[grant.ID] = grant
	return nil
}
func (f *fakeStorage) EndGrant(ctx storage.TransactionContext, id string, endedAt time.Time, endedActorID *string) error {
	g, ok := f.grants[id]
	if !ok {
		return nil
	}
	g.EndedAt = &endedAt
	g.EndedActorID = endedActorID
	f.grants[id] = g
	return nil
}
func (f *fakeStorage) UpdateGrantShouldExpire(ctx storage.TransactionContext, id string, shouldExpire bool) error {
	g, ok := f.grants[id]
	if !ok {
		return nil
	}
	g.ShouldExpire = shouldExpire
	f.grants[id] = g
	return nil
}

func (f *fakeStorage) FindRoleGroupMapsForRole(ctx storage.TransactionContext, roleGroupID string) ([]model.RoleGroupMap, error) {
	var out []model.RoleGroupMap
	for _, m := range f.roleGroupMaps {
		if m.RoleGroupID == roleGroupID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindRoleGroupMapsForGroup(ctx storage.TransactionContext, groupID string) ([]model.RoleGroupMap, error) {
	var out []model.RoleGroupMap
	for _, m := range f.roleGroupMaps {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindActiveRoleGroupMaps(ctx storage.TransactionContext) ([]model.RoleGroupMap, error) {
	now := time.Now()
	var out []model.RoleGroupMap
	for _, m := range f.roleGroupMaps {
		if m.IsActiveAt(now) {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertRoleGroupMap(ctx storage.TransactionContext, rgm model.RoleGroupMap) error {
	f.roleGroupMaps[rgm.ID] = rgm
	return nil
}
func (f *fakeStorage) EndRoleGroupMap(ctx storage.TransactionContext, id string, endedAt time.Time, endedActorID *string) error {
	m, ok := f.roleGroupMaps[id]
	if !ok {
		return nil
	}
	m.EndedAt = &endedAt
	f.roleGroupMaps[id] = m
	return nil
}

func (f *fakeStorage) FindAccessRequest(ctx storage.TransactionContext, id string) (*model.AccessRequest, error) {
	if r, ok := f.accessReqs[id]; ok {
		return &r, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindPendingAccessRequest(ctx storage.TransactionContext, requesterID string, groupID string) (*model.AccessRequest, error) {
	for _, r := range f.accessReqs {
		if r.RequesterID == requesterID && r.RequestedGroupID == groupID && r.Status == model.RequestStatusPending {
			return &r, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindPendingAccessRequestsForGroup(ctx storage.TransactionContext, groupID string) ([]model.AccessRequest, error) {
	var out []model.AccessRequest
	for _, r := range f.accessReqs {
		if r.RequestedGroupID == groupID && r.Status == model.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindPendingAccessRequests(ctx storage.TransactionContext) ([]model.AccessRequest, error) {
	var out []model.AccessRequest
	for _, r := range f.accessReqs {
		if r.Status == model.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindPendingAccessRequestsForUser(ctx storage.TransactionContext, requesterID string) ([]model.AccessRequest, error) {
	var out []model.AccessRequest
	for _, r := range f.accessReqs {
		if r.RequesterID == requesterID && r.Status == model.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertAccessRequest(ctx storage.TransactionContext, req model.AccessRequest) error {
	f.accessReqs[req.ID] = req
	return nil
}
func (f *fakeStorage) ResolveAccessRequest(ctx storage.TransactionContext, req model.AccessRequest) error {
	f.accessReqs[req.ID] = req
	return nil
}

func (f *fakeStorage) FindRoleRequest(ctx storage.TransactionContext, id string) (*model.RoleRequest, error) {
	if r, ok := f.roleReqs[id]; ok {
		return &r, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindPendingRoleRequest(ctx storage.TransactionContext, roleGroupID string, groupID string) (*model.RoleRequest, error) {
	for _, r := range f.roleReqs {
		if r.RequesterRoleID == roleGroupID && r.RequestedGroupID == groupID && r.Status == model.RequestStatusPending {
			return &r, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindPendingRoleRequests(ctx storage.TransactionContext) ([]model.RoleRequest, error) {
	var out []model.RoleRequest
	for _, r := range f.roleReqs {
		if r.Status == model.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStorage) FindPendingRoleRequestsForUser(ctx storage.TransactionContext, requesterID string) ([]model.RoleRequest, error) {
	var out []model.RoleRequest
	for _, r := range f.roleReqs {
		if r.RequesterID == requesterID && r.Status == model.RequestStatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeStorage) InsertRoleRequest(ctx storage.TransactionContext, req model.RoleRequest) error {
	f.roleReqs[req.ID] = req
	return nil
}
func (f *fakeStorage) ResolveRoleRequest(ctx storage.TransactionContext, req model.RoleRequest) error {
	f.roleReqs[req.ID] = req
	return nil
}

func (f *fakeStorage) FindGroupRequest(ctx storage.TransactionContext, id string) (*model.GroupRequest, error) {
	if r, ok := f.groupReqs[id]; ok {
		return &r, nil
	}
	return nil, nil
}
func (f *fakeStorage) FindPendingGroupRequest(ctx storage.TransactionContext, requestedName string, requestedAppID *string) (*model.GroupRequest, error) {
	for _, r := range f.groupReqs {
		if r.RequestedName == requestedName && r.Status == model.RequestStatusPending && samePtrString(r.RequestedAppID, requestedAppID) {
			return &r, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) InsertGroupRequest(ctx storage.TransactionContext, req model.GroupRequest) error {
	f.groupReqs[req.ID] = req
	return nil
}
func (f *fakeStorage) ResolveGroupRequest(ctx storage.TransactionContext, req model.GroupRequest) error {
	f.groupReqs[req.ID] = req
	return nil
}

func (f *fakeStorage) FindSyncConfigs(ctx storage.TransactionContext) ([]model.SyncConfig, error) {
	return f.syncConfigs, nil
}
func (f *fakeStorage) GetCachedSyncConfig(sweepType string) (*model.SyncConfig, error) {
	for _, c := range f.syncConfigs {
		if c.Type == sweepType {
			return &c, nil
		}
	}
	return nil, nil
}
func (f *fakeStorage) FindSyncTimes(ctx storage.TransactionContext, key string) (*model.SyncTimes, error) {
	return nil, nil
}
func (f *fakeStorage) SaveSyncTimes(ctx storage.TransactionContext, times model.SyncTimes) error {
	return nil
}

var _ Storage = (*fakeStorage)(nil)

// fakeAuditHook/fakeNotificationHook are no-op doubles for the handful of
// request-lifecycle paths that call out to them unconditionally.
type fakeAuditHook struct{ events []model.AuditEnvelope }

func (f *fakeAuditHook) LogEvent(envelope model.AuditEnvelope) { f.events = append(f.events, envelope) }

type fakeNotificationHook struct{ createdApprovers [][]string }

func (f *fakeNotificationHook) AccessRequestCreated(req model.AccessRequest, group model.Group, approverIDs []string) {
	f.createdApprovers = append(f.createdApprovers, approverIDs)
}
func (f *fakeNotificationHook) AccessRequestCompleted(req model.AccessRequest, group model.Group) {}
func (f *fakeNotificationHook) AccessRoleRequestCreated(req model.RoleRequest, group model.Group, approverIDs []string) {
}
func (f *fakeNotificationHook) AccessRoleRequestCompleted(req model.RoleRequest, group model.Group) {}
func (f *fakeNotificationHook) ExpiringUser(grant model.Grant, group model.Group)                   {}
func (f *fakeNotificationHook) ExpiringOwner(grant model.Grant, group model.Group)                  {}
func (f *fakeNotificationHook) ExpiringRoleOwner(roleMap model.RoleGroupMap, group model.Group)     {}

// fakeMetricsHook is a no-op double for the group-creation and membership
// paths that emit counters unconditionally.
type fakeMetricsHook struct{}

func (f *fakeMetricsHook) Increment(name string, tags map[string]string) {}

var _ AuditHook = (*fakeAuditHook)(nil)
var _ NotificationHook = (*fakeNotificationHook)(nil)
var _ MetricsHook = (*fakeMetricsHook)(nil)

func newTestApplication(store *fakeStorage) *Application {
	return &Application{
		storage:       store,
		config:        model.ApplicationConfig{},
		audit:         &fakeAuditHook{},
		notifications: &fakeNotificationHook{},
		metrics:       &fakeMetricsHook{},
	}
}

func samePtrString(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
