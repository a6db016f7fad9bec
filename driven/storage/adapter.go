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

package storage

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"accessgov/core/model"

	"golang.org/x/sync/syncmap"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Adapter implements the entity store described in the data model - every
// group/role/app/grant/request read and write the engine, policy, request
// and reconcile code performs goes through here.
type Adapter struct {
	db *database

	cachedSyncConfigs *syncmap.Map
	syncConfigsLock   *sync.RWMutex
}

// Start starts the storage
func (sa *Adapter) Start() error {
	err := sa.db.start()
	if err != nil {
		return err
	}
	sa.RegisterStorageListener(&storageListener{adapter: sa})
	return sa.cacheSyncConfigs()
}

// RegisterStorageListener registers a data change listener with the adapter
func (sa *Adapter) RegisterStorageListener(listener Listener) {
	sa.db.listeners = append(sa.db.listeners, listener)
}

func (sa *Adapter) cacheSyncConfigs() error {
	log.Println("cacheSyncConfigs...")

	configs, err := sa.FindSyncConfigs(nil)
	if err != nil {
		return fmt.Errorf("error finding sync configs: %v", err)
	}

	sa.setCachedSyncConfigs(&configs)
	return nil
}

func (sa *Adapter) setCachedSyncConfigs(configs *[]model.SyncConfig) {
	sa.syncConfigsLock.Lock()
	defer sa.syncConfigsLock.Unlock()

	sa.cachedSyncConfigs = &syncmap.Map{}
	for _, config := range *configs {
		sa.cachedSyncConfigs.Store(config.Type, config)
	}
}

// GetCachedSyncConfig returns the cached sync config for a reconciler sweep kind
func (sa *Adapter) GetCachedSyncConfig(sweepType string) (*model.SyncConfig, error) {
	sa.syncConfigsLock.RLock()
	defer sa.syncConfigsLock.RUnlock()

	item, _ := sa.cachedSyncConfigs.Load(sweepType)
	if item != nil {
		config, ok := item.(model.SyncConfig)
		if !ok {
			return nil, fmt.Errorf("missing sync config for type: %s", sweepType)
		}
		return &config, nil
	}
	return nil, nil
}

// FindSyncConfigs finds all reconciler sweep configs
func (sa *Adapter) FindSyncConfigs(ctx TransactionContext) ([]model.SyncConfig, error) {
	var configs []model.SyncConfig
	err := sa.db.syncConfigs.FindWithContext(ctx, bson.D{}, &configs, nil)
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// SaveSyncConfig upserts a reconciler sweep config
func (sa *Adapter) SaveSyncConfig(ctx TransactionContext, config model.SyncConfig) error {
	filter := bson.D{primitive.E{Key: "type", Value: config.Type}}
	opts := options.Replace().SetUpsert(true)
	err := sa.db.syncConfigs.ReplaceOneWithContext(ctx, filter, config, opts)
	if err != nil {
		return err
	}
	return sa.cacheSyncConfigs()
}

// FindSyncTimes finds the last start/end of a reconciler sweep, used to
// prevent two overlapping runs of the same sweep kind.
func (sa *Adapter) FindSyncTimes(ctx TransactionContext, key string) (*model.SyncTimes, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: key}}
	var times []model.SyncTimes
	err := sa.db.syncTimes.FindWithContext(ctx, filter, &times, nil)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}
	return &times[0], nil
}

// SaveSyncTimes upserts the last start/end of a reconciler sweep
func (sa *Adapter) SaveSyncTimes(ctx TransactionContext, times model.SyncTimes) error {
	filter := bson.D{primitive.E{Key: "_id", Value: times.Key}}
	opts := options.Replace().SetUpsert(true)
	return sa.db.syncTimes.ReplaceOneWithContext(ctx, filter, times, opts)
}

// ---- users ----

// FindUser finds a user by id
func (sa *Adapter) FindUser(ctx TransactionContext, id string) (*model.User, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var users []model.User
	err := sa.db.users.FindWithContext(ctx, filter, &users, nil)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// FindUserByEmail finds a user by email, case-insensitively
func (sa *Adapter) FindUserByEmail(ctx TransactionContext, email string) (*model.User, error) {
	filter := bson.D{primitive.E{Key: "email", Value: primitive.Regex{Pattern: "^" + strings.ToLower(email) + "$", Options: "i"}}}
	var users []model.User
	err := sa.db.users.FindWithContext(ctx, filter, &users, nil)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// FindUsers finds users by a set of ids
func (sa *Adapter) FindUsers(ctx TransactionContext, ids []string) ([]model.User, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: bson.M{"$in": ids}}}
	var users []model.User
	err := sa.db.users.FindWithContext(ctx, filter, &users, nil)
	return users, err
}

// FindAllUsers finds every non-deleted user, used by the user-sync sweep to
// detect accounts the IdP no longer reports
func (sa *Adapter) FindAllUsers(ctx TransactionContext) ([]model.User, error) {
	filter := bson.D{primitive.E{Key: "deleted_at", Value: nil}}
	var users []model.User
	err := sa.db.users.FindWithContext(ctx, filter, &users, nil)
	return users, err
}

// SaveUser upserts a user record, the target of reconciler user sync
func (sa *Adapter) SaveUser(ctx TransactionContext, user model.User) error {
	filter := bson.D{primitive.E{Key: "_id", Value: user.ID}}
	opts := options.Replace().SetUpsert(true)
	return sa.db.users.ReplaceOneWithContext(ctx, filter, user, opts)
}

// ---- apps ----

// FindApp finds an app by id
func (sa *Adapter) FindApp(ctx TransactionContext, id string) (*model.App, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var apps []model.App
	err := sa.db.apps.FindWithContext(ctx, filter, &apps, nil)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}

// FindAppByName finds an app by its case-insensitively unique name
func (sa *Adapter) FindAppByName(ctx TransactionContext, name string) (*model.App, error) {
	filter := bson.D{primitive.E{Key: "name", Value: primitive.Regex{Pattern: "^" + strings.ToLower(name) + "$", Options: "i"}}}
	var apps []model.App
	err := sa.db.apps.FindWithContext(ctx, filter, &apps, nil)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}

// FindApps finds every non-deleted app
func (sa *Adapter) FindApps(ctx TransactionContext) ([]model.App, error) {
	filter := bson.D{primitive.E{Key: "deleted_at", Value: nil}}
	var apps []model.App
	err := sa.db.apps.FindWithContext(ctx, filter, &apps, nil)
	return apps, err
}

// InsertApp inserts a new app
func (sa *Adapter) InsertApp(ctx TransactionContext, app model.App) error {
	_, err := sa.db.apps.InsertOneWithContext(ctx, app)
	return err
}

// UpdateApp replaces an app record
func (sa *Adapter) UpdateApp(ctx TransactionContext, app model.App) error {
	filter := bson.D{primitive.E{Key: "_id", Value: app.ID}}
	return sa.db.apps.ReplaceOneWithContext(ctx, filter, app, nil)
}

// ---- groups ----

// FindGroup finds a group (plain/role/app) by id
func (sa *Adapter) FindGroup(ctx TransactionContext, id string) (*model.Group, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var groups []model.Group
	err := sa.db.groups.FindWithContext(ctx, filter, &groups, nil)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return &groups[0], nil
}

// FindGroupByName finds a group by its case-insensitively unique name
func (sa *Adapter) FindGroupByName(ctx TransactionContext, name string) (*model.Group, error) {
	filter := bson.D{primitive.E{Key: "name", Value: primitive.Regex{Pattern: "^" + strings.ToLower(name) + "$", Options: "i"}}}
	var groups []model.Group
	err := sa.db.groups.FindWithContext(ctx, filter, &groups, nil)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return &groups[0], nil
}

// FindGroups finds groups by type, optionally scoped to an app
func (sa *Adapter) FindGroups(ctx TransactionContext, groupType *model.GroupType, appID *string) ([]model.Group, error) {
	filter := bson.D{primitive.E{Key: "deleted_at", Value: nil}}
	if groupType != nil {
		filter = append(filter, primitive.E{Key: "type", Value: *groupType})
	}
	if appID != nil {
		filter = append(filter, primitive.E{Key: "app_id", Value: *appID})
	}
	var groups []model.Group
	err := sa.db.groups.FindWithContext(ctx, filter, &groups, nil)
	return groups, err
}

// InsertGroup inserts a new group
func (sa *Adapter) InsertGroup(ctx TransactionContext, group model.Group) error {
	_, err := sa.db.groups.InsertOneWithContext(ctx, group)
	return err
}

// UpdateGroup replaces a group record, used by type changes and soft-delete
func (sa *Adapter) UpdateGroup(ctx TransactionContext, group model.Group) error {
	filter := bson.D{primitive.E{Key: "_id", Value: group.ID}}
	return sa.db.groups.ReplaceOneWithContext(ctx, filter, group, nil)
}

// ---- tags ----

// FindTag finds a tag by id
func (sa *Adapter) FindTag(ctx TransactionContext, id string) (*model.Tag, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var tags []model.Tag
	err := sa.db.tags.FindWithContext(ctx, filter, &tags, nil)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return &tags[0], nil
}

// FindTagByName finds a tag by its name
func (sa *Adapter) FindTagByName(ctx TransactionContext, name string) (*model.Tag, error) {
	filter := bson.D{primitive.E{Key: "name", Value: name}}
	var tags []model.Tag
	err := sa.db.tags.FindWithContext(ctx, filter, &tags, nil)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return &tags[0], nil
}

// FindTags finds a set of tags by id
func (sa *Adapter) FindTags(ctx TransactionContext, ids []string) ([]model.Tag, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: bson.M{"$in": ids}}}
	var tags []model.Tag
	err := sa.db.tags.FindWithContext(ctx, filter, &tags, nil)
	return tags, err
}

// InsertTag inserts a new tag
func (sa *Adapter) InsertTag(ctx TransactionContext, tag model.Tag) error {
	_, err := sa.db.tags.InsertOneWithContext(ctx, tag)
	return err
}

// DeleteTag removes a tag and its group/app associations
func (sa *Adapter) DeleteTag(ctx TransactionContext, id string) error {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	_, err := sa.db.tags.DeleteOneWithContext(ctx, filter, nil)
	if err != nil {
		return err
	}

	mapFilter := bson.D{primitive.E{Key: "tag_id", Value: id}}
	if _, err = sa.db.groupTagMaps.DeleteManyWithContext(ctx, mapFilter, nil); err != nil {
		return err
	}
	_, err = sa.db.appTagMaps.DeleteManyWithContext(ctx, mapFilter, nil)
	return err
}

// FindGroupTags finds a group's own tag associations
func (sa *Adapter) FindGroupTags(ctx TransactionContext, groupID string) ([]model.GroupTagMap, error) {
	filter := bson.D{primitive.E{Key: "group_id", Value: groupID}}
	var maps []model.GroupTagMap
	err := sa.db.groupTagMaps.FindWithContext(ctx, filter, &maps, nil)
	return maps, err
}

// InsertGroupTag associates a tag with a group
func (sa *Adapter) InsertGroupTag(ctx TransactionContext, gtm model.GroupTagMap) error {
	_, err := sa.db.groupTagMaps.InsertOneWithContext(ctx, gtm)
	return err
}

// DeleteGroupTag removes a tag's association with a group
func (sa *Adapter) DeleteGroupTag(ctx TransactionContext, groupID string, tagID string) error {
	filter := bson.D{
		primitive.E{Key: "group_id", Value: groupID},
		primitive.E{Key: "tag_id", Value: tagID},
	}
	_, err := sa.db.groupTagMaps.DeleteOneWithContext(ctx, filter, nil)
	return err
}

// FindAppTags finds an app's tag associations
func (sa *Adapter) FindAppTags(ctx TransactionContext, appID string) ([]model.AppTagMap, error) {
	filter := bson.D{primitive.E{Key: "app_id", Value: appID}}
	var maps []model.AppTagMap
	err := sa.db.appTagMaps.FindWithContext(ctx, filter, &maps, nil)
	return maps, err
}

// InsertAppTag associates a tag with an app
func (sa *Adapter) InsertAppTag(ctx TransactionContext, atm model.AppTagMap) error {
	_, err := sa.db.appTagMaps.InsertOneWithContext(ctx, atm)
	return err
}

// DeleteAppTag removes a tag's association with an app
func (sa *Adapter) DeleteAppTag(ctx TransactionContext, appID string, tagID string) error {
	filter := bson.D{
		primitive.E{Key: "app_id", Value: appID},
		primitive.E{Key: "tag_id", Value: tagID},
	}
	_, err := sa.db.appTagMaps.DeleteOneWithContext(ctx, filter, nil)
	return err
}

// ---- grants ----

// FindGrant finds a single grant by id
func (sa *Adapter) FindGrant(ctx TransactionContext, id string) (*model.Grant, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var grants []model.Grant
	err := sa.db.grants.FindWithContext(ctx, filter, &grants, nil)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}
	return &grants[0], nil
}

// activeAtFilter builds the "ended_at is null or still in the future" clause
// shared by every active-grant/active-role-map lookup, mirroring
// model.Grant.IsActiveAt/model.RoleGroupMap.IsActiveAt.
func activeAtFilter(now time.Time) primitive.E {
	return primitive.E{Key: "$or", Value: bson.A{
		bson.D{primitive.E{Key: "ended_at", Value: nil}},
		bson.D{primitive.E{Key: "ended_at", Value: bson.M{"$gt": now}}},
	}}
}

// FindActiveGrant finds the active grant, if any, for a user/group/owner bucket
func (sa *Adapter) FindActiveGrant(ctx TransactionContext, userID string, groupID string, isOwner bool) (*model.Grant, error) {
	filter := bson.D{
		primitive.E{Key: "user_id", Value: userID},
		primitive.E{Key: "group_id", Value: groupID},
		primitive.E{Key: "is_owner", Value: isOwner},
		activeAtFilter(time.Now()),
	}
	var grants []model.Grant
	err := sa.db.grants.FindWithContext(ctx, filter, &grants, nil)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}
	return &grants[0], nil
}

// FindActiveGrantsForGroup finds every active grant for a group, member and owner alike
func (sa *Adapter) FindActiveGrantsForGroup(ctx TransactionContext, groupID string) ([]model.Grant, error) {
	filter := bson.D{
		primitive.E{Key: "group_id", Value: groupID},
		activeAtFilter(time.Now()),
	}
	var grants []model.Grant
	err := sa.db.grants.FindWithContext(ctx, filter, &grants, nil)
	return grants, err
}

// FindActiveGrantsForUser finds every active grant held by a user
func (sa *Adapter) FindActiveGrantsForUser(ctx TransactionContext, userID string) ([]model.Grant, error) {
	filter := bson.D{
		primitive.E{Key: "user_id", Value: userID},
		activeAtFilter(time.Now()),
	}
	var grants []model.Grant
	err := sa.db.grants.FindWithContext(ctx, filter, &grants, nil)
	return grants, err
}

// FindGrantsEndingBetween finds grants, direct and derived, whose end falls
// in (from, to], used by the expiring-grant notification scan.
func (sa *Adapter) FindGrantsEndingBetween(ctx TransactionContext, from time.Time, to time.Time) ([]model.Grant, error) {
	filter := bson.D{
		primitive.E{Key: "ended_at", Value: bson.M{"$gt": from, "$lte": to}},
	}
	var grants []model.Grant
	err := sa.db.grants.FindWithContext(ctx, filter, &grants, nil)
	return grants, err
}

// InsertGrant inserts a new direct or derived grant
func (sa *Adapter) InsertGrant(ctx TransactionContext, grant model.Grant) error {
	_, err := sa.db.grants.InsertOneWithContext(ctx, grant)
	return err
}

// EndGrant marks a grant ended, write-once: a grant already ended is untouched
func (sa *Adapter) EndGrant(ctx TransactionContext, id string, endedAt time.Time, endedActorID *string) error {
	filter := bson.D{
		primitive.E{Key: "_id", Value: id},
		activeAtFilter(time.Now()),
	}
	update := bson.D{primitive.E{Key: "$set", Value: bson.D{
		primitive.E{Key: "ended_at", Value: endedAt},
		primitive.E{Key: "ended_actor_id", Value: endedActorID},
	}}}
	_, err := sa.db.grants.UpdateOneWithContext(ctx, filter, update, nil)
	return err
}

// UpdateGrantShouldExpire flips the should_expire UI hint on an active grant.
func (sa *Adapter) UpdateGrantShouldExpire(ctx TransactionContext, id string, shouldExpire bool) error {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	update := bson.D{primitive.E{Key: "$set", Value: bson.D{
		primitive.E{Key: "should_expire", Value: shouldExpire},
	}}}
	_, err := sa.db.grants.UpdateOneWithContext(ctx, filter, update, nil)
	return err
}

// ---- role group maps ----

// FindRoleGroupMapsForRole finds every group (and owner/member shape) a role is
// currently associated with
func (sa *Adapter) FindRoleGroupMapsForRole(ctx TransactionContext, roleGroupID string) ([]model.RoleGroupMap, error) {
	filter := bson.D{
		primitive.E{Key: "role_group_id", Value: roleGroupID},
		activeAtFilter(time.Now()),
	}
	var maps []model.RoleGroupMap
	err := sa.db.roleGroupMaps.FindWithContext(ctx, filter, &maps, nil)
	return maps, err
}

// FindRoleGroupMapsForGroup finds every role currently associated with a group
func (sa *Adapter) FindRoleGroupMapsForGroup(ctx TransactionContext, groupID string) ([]model.RoleGroupMap, error) {
	filter := bson.D{
		primitive.E{Key: "group_id", Value: groupID},
		activeAtFilter(time.Now()),
	}
	var maps []model.RoleGroupMap
	err := sa.db.roleGroupMaps.FindWithContext(ctx, filter, &maps, nil)
	return maps, err
}

// FindActiveRoleGroupMaps finds every currently active role/group association
// system-wide, used by the integrity-repair sweep
func (sa *Adapter) FindActiveRoleGroupMaps(ctx TransactionContext) ([]model.RoleGroupMap, error) {
	filter := bson.D{activeAtFilter(time.Now())}
	var maps []model.RoleGroupMap
	err := sa.db.roleGroupMaps.FindWithContext(ctx, filter, &maps, nil)
	return maps, err
}

// InsertRoleGroupMap associates a role with a group
func (sa *Adapter) InsertRoleGroupMap(ctx TransactionContext, rgm model.RoleGroupMap) error {
	_, err := sa.db.roleGroupMaps.InsertOneWithContext(ctx, rgm)
	return err
}

// EndRoleGroupMap ends a role/group association, write-once
func (sa *Adapter) EndRoleGroupMap(ctx TransactionContext, id string, endedAt time.Time, endedActorID *string) error {
	filter := bson.D{
		primitive.E{Key: "_id", Value: id},
		activeAtFilter(time.Now()),
	}
	update := bson.D{primitive.E{Key: "$set", Value: bson.D{
		primitive.E{Key: "ended_at", Value: endedAt},
		primitive.E{Key: "ended_actor_id", Value: endedActorID},
	}}}
	_, err := sa.db.roleGroupMaps.UpdateOneWithContext(ctx, filter, update, nil)
	return err
}

// ---- access requests ----

// FindAccessRequest finds a single access request by id
func (sa *Adapter) FindAccessRequest(ctx TransactionContext, id string) (*model.AccessRequest, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var requests []model.AccessRequest
	err := sa.db.accessRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// FindPendingAccessRequest finds a requester's outstanding pending request for
// a group, used for duplicate-request detection
func (sa *Adapter) FindPendingAccessRequest(ctx TransactionContext, requesterID string, groupID string) (*model.AccessRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requester_id", Value: requesterID},
		primitive.E{Key: "requested_group_id", Value: groupID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	var requests []model.AccessRequest
	err := sa.db.accessRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// FindPendingAccessRequestsForGroup finds every pending access request for a
// group, used by the admin pending-request listing, request auto-resolution
// and the group-delete and unmanaged-group cascades
func (sa *Adapter) FindPendingAccessRequestsForGroup(ctx TransactionContext, groupID string) ([]model.AccessRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requested_group_id", Value: groupID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	var requests []model.AccessRequest
	err := sa.db.accessRequests.FindWithContext(ctx, filter, &requests, nil)
	return requests, err
}

// FindPendingAccessRequests finds every pending access request system-wide,
// used by the expiry sweep
func (sa *Adapter) FindPendingAccessRequests(ctx TransactionContext) ([]model.AccessRequest, error) {
	filter := bson.D{primitive.E{Key: "status", Value: model.RequestStatusPending}}
	var requests []model.AccessRequest
	err := sa.db.accessRequests.FindWithContext(ctx, filter, &requests, nil)
	return requests, err
}

// FindPendingAccessRequestsForUser finds a requester's pending access
// requests system-wide, used when a user is soft-deleted
func (sa *Adapter) FindPendingAccessRequestsForUser(ctx TransactionContext, requesterID string) ([]model.AccessRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requester_id", Value: requesterID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	var requests []model.AccessRequest
	err := sa.db.accessRequests.FindWithContext(ctx, filter, &requests, nil)
	return requests, err
}

// InsertAccessRequest inserts a new access request
func (sa *Adapter) InsertAccessRequest(ctx TransactionContext, req model.AccessRequest) error {
	_, err := sa.db.accessRequests.InsertOneWithContext(ctx, req)
	return err
}

// ResolveAccessRequest flips a pending request terminal, write-once
func (sa *Adapter) ResolveAccessRequest(ctx TransactionContext, req model.AccessRequest) error {
	filter := bson.D{
		primitive.E{Key: "_id", Value: req.ID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	return sa.db.accessRequests.ReplaceOneWithContext(ctx, filter, req, nil)
}

// ---- role requests ----

// FindRoleRequest finds a single role request by id
func (sa *Adapter) FindRoleRequest(ctx TransactionContext, id string) (*model.RoleRequest, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var requests []model.RoleRequest
	err := sa.db.roleRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// FindPendingRoleRequest finds a role's outstanding pending request for a
// group, used for duplicate-request detection
func (sa *Adapter) FindPendingRoleRequest(ctx TransactionContext, roleGroupID string, groupID string) (*model.RoleRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requester_role_id", Value: roleGroupID},
		primitive.E{Key: "requested_group_id", Value: groupID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	var requests []model.RoleRequest
	err := sa.db.roleRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// FindPendingRoleRequests finds every pending role request system-wide, used
// by the expiry sweep
func (sa *Adapter) FindPendingRoleRequests(ctx TransactionContext) ([]model.RoleRequest, error) {
	filter := bson.D{primitive.E{Key: "status", Value: model.RequestStatusPending}}
	var requests []model.RoleRequest
	err := sa.db.roleRequests.FindWithContext(ctx, filter, &requests, nil)
	return requests, err
}

// FindPendingRoleRequestsForUser finds a requester's pending role requests
// system-wide, used when a user is soft-deleted
func (sa *Adapter) FindPendingRoleRequestsForUser(ctx TransactionContext, requesterID string) ([]model.RoleRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requester_id", Value: requesterID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	var requests []model.RoleRequest
	err := sa.db.roleRequests.FindWithContext(ctx, filter, &requests, nil)
	return requests, err
}

// InsertRoleRequest inserts a new role request
func (sa *Adapter) InsertRoleRequest(ctx TransactionContext, req model.RoleRequest) error {
	_, err := sa.db.roleRequests.InsertOneWithContext(ctx, req)
	return err
}

// ResolveRoleRequest flips a pending role request terminal, write-once
func (sa *Adapter) ResolveRoleRequest(ctx TransactionContext, req model.RoleRequest) error {
	filter := bson.D{
		primitive.E{Key: "_id", Value: req.ID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	return sa.db.roleRequests.ReplaceOneWithContext(ctx, filter, req, nil)
}

// ---- group requests ----

// FindGroupRequest finds a single group-creation request by id
func (sa *Adapter) FindGroupRequest(ctx TransactionContext, id string) (*model.GroupRequest, error) {
	filter := bson.D{primitive.E{Key: "_id", Value: id}}
	var requests []model.GroupRequest
	err := sa.db.groupRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// FindPendingGroupRequest finds an outstanding pending request for the same
// (name, app_id) pair, used for duplicate-request detection
func (sa *Adapter) FindPendingGroupRequest(ctx TransactionContext, requestedName string, requestedAppID *string) (*model.GroupRequest, error) {
	filter := bson.D{
		primitive.E{Key: "requested_name", Value: requestedName},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	if requestedAppID != nil {
		filter = append(filter, primitive.E{Key: "requested_app_id", Value: *requestedAppID})
	} else {
		filter = append(filter, primitive.E{Key: "requested_app_id", Value: nil})
	}
	var requests []model.GroupRequest
	err := sa.db.groupRequests.FindWithContext(ctx, filter, &requests, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

// InsertGroupRequest inserts a new group-creation request
func (sa *Adapter) InsertGroupRequest(ctx TransactionContext, req model.GroupRequest) error {
	_, err := sa.db.groupRequests.InsertOneWithContext(ctx, req)
	return err
}

// ResolveGroupRequest flips a pending group-creation request terminal, write-once
func (sa *Adapter) ResolveGroupRequest(ctx TransactionContext, req model.GroupRequest) error {
	filter := bson.D{
		primitive.E{Key: "_id", Value: req.ID},
		primitive.E{Key: "status", Value: model.RequestStatusPending},
	}
	return sa.db.groupRequests.ReplaceOneWithContext(ctx, filter, req, nil)
}

// ---- transactions ----

// PerformTransaction runs transaction inside a mongo multi-document
// transaction, aborting on any error the callback returns. The grant engine
// relies on this for its end -> commit -> add -> commit ordering: each half
// of ModifyGroupUsers is its own call so a failure in the add phase never
// rolls back the end phase that already committed.
func (sa *Adapter) PerformTransaction(transaction func(context TransactionContext) error) error {
	err := sa.db.dbClient.UseSession(context.Background(), func(sessionContext mongo.SessionContext) error {
		err := sessionContext.StartTransaction()
		if err != nil {
			sa.abortTransaction(sessionContext)
			return err
		}

		err = transaction(sessionContext)
		if err != nil {
			sa.abortTransaction(sessionContext)
			return err
		}

		err = sessionContext.CommitTransaction(sessionContext)
		if err != nil {
			sa.abortTransaction(sessionContext)
			return err
		}
		return nil
	})

	return err
}

func (sa *Adapter) abortTransaction(sessionContext mongo.SessionContext) {
	err := sessionContext.AbortTransaction(sessionContext)
	if err != nil {
		log.Printf("error aborting a transaction - %s\n", err)
	}
}

// NewStorageAdapter creates a new storage adapter instance
func NewStorageAdapter(mongoDBAuth string, mongoDBName string, mongoTimeout string) *Adapter {
	timeout, err := strconv.Atoi(mongoTimeout)
	if err != nil {
		log.Println("Set default timeout - 500")
		timeout = 500
	}
	timeoutMS := time.Millisecond * time.Duration(timeout)

	db := &database{mongoDBAuth: mongoDBAuth, mongoDBName: mongoDBName, mongoTimeout: timeoutMS}

	cachedSyncConfigs := &syncmap.Map{}
	syncConfigsLock := &sync.RWMutex{}

	return &Adapter{db: db, cachedSyncConfigs: cachedSyncConfigs, syncConfigsLock: syncConfigsLock}
}

// NewID returns a new synthetic entity id
func NewID() string {
	return uuid.NewString()
}

type storageListener struct {
	adapter *Adapter
	DefaultListenerImpl
}

func (sl *storageListener) OnConfigsChanged() {}

func (sl *storageListener) OnSyncConfigsChanged() {
	err := sl.adapter.cacheSyncConfigs()
	if err != nil {
		log.Printf("error caching sync configs: %v", err)
	}
}

// Listener listens for change data storage events
type Listener interface {
	OnConfigsChanged()
	OnSyncConfigsChanged()
}

// DefaultListenerImpl default listener implementation
type DefaultListenerImpl struct{}

// OnConfigsChanged notifies configs have been updated
func (d *DefaultListenerImpl) OnConfigsChanged() {}

// OnSyncConfigsChanged notifies reconciler sweep configs have been updated
func (d *DefaultListenerImpl) OnSyncConfigsChanged() {}

// TransactionContext wraps mongo.SessionContext for use by external packages
type TransactionContext interface {
	mongo.SessionContext
}
