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

// Storage is the entity-store port the engine, policy gates, request
// lifecycle, and reconciler mutate through. driven/storage.Adapter satisfies
// it; tests substitute a fake.
type Storage interface {
	PerformTransaction(transaction func(context storage.TransactionContext) error) error

	FindUser(ctx storage.TransactionContext, id string) (*model.User, error)
	FindUserByEmail(ctx storage.TransactionContext, email string) (*model.User, error)
	FindUsers(ctx storage.TransactionContext, ids []string) ([]model.User, error)
	FindAllUsers(ctx storage.TransactionContext) ([]model.User, error)
	SaveUser(ctx storage.TransactionContext, user model.User) error

	FindApp(ctx storage.TransactionContext, id string) (*model.App, error)
	FindAppByName(ctx storage.TransactionContext, name string) (*model.App, error)
	FindApps(ctx storage.TransactionContext) ([]model.App, error)
	InsertApp(ctx storage.TransactionContext, app model.App) error
	UpdateApp(ctx storage.TransactionContext, app model.App) error

	FindGroup(ctx storage.TransactionContext, id string) (*model.Group, error)
	FindGroupByName(ctx storage.TransactionContext, name string) (*model.Group, error)
	FindGroups(ctx storage.TransactionContext, groupType *model.GroupType, appID *string) ([]model.Group, error)
	InsertGroup(ctx storage.TransactionContext, group model.Group) error
	UpdateGroup(ctx storage.TransactionContext, group model.Group) error

	FindTag(ctx storage.TransactionContext, id string) (*model.Tag, error)
	FindTagByName(ctx storage.TransactionContext, name string) (*model.Tag, error)
	FindTags(ctx storage.TransactionContext, ids []string) ([]model.Tag, error)
	InsertTag(ctx storage.TransactionContext, tag model.Tag) error
	DeleteTag(ctx storage.TransactionContext, id string) error

	FindGroupTags(ctx storage.TransactionContext, groupID string) ([]model.GroupTagMap, error)
	InsertGroupTag(ctx storage.TransactionContext, gtm model.GroupTagMap) error
	DeleteGroupTag(ctx storage.TransactionContext, groupID string, tagID string) error

	FindAppTags(ctx storage.TransactionContext, appID string) ([]model.AppTagMap, error)
	InsertAppTag(ctx storage.TransactionContext, atm model.AppTagMap) error
	DeleteAppTag(ctx storage.TransactionContext, appID string, tagID string) error

	FindGrant(ctx storage.TransactionContext, id string) (*model.Grant, error)
	FindActiveGrant(ctx storage.TransactionContext, userID string, groupID string, isOwner bool) (*model.Grant, error)
	FindActiveGrantsForGroup(ctx storage.TransactionContext, groupID string) ([]model.Grant, error)
	FindActiveGrantsForUser(ctx storage.TransactionContext, userID string) ([]model.Grant, error)
	FindGrantsEndingBetween(ctx storage.TransactionContext, from time.Time, to time.Time) ([]model.Grant, error)
	InsertGrant(ctx storage.TransactionContext, grant model.Grant) error
	EndGrant(ctx storage.TransactionContext, id string, endedAt time.Time, endedActorID *string) error
	UpdateGrantShouldExpire(ctx storage.TransactionContext, id string, shouldExpire bool) error

	FindRoleGroupMapsForRole(ctx storage.TransactionContext, roleGroupID string) ([]model.RoleGroupMap, error)
	FindRoleGroupMapsForGroup(ctx storage.TransactionContext, groupID string) ([]model.RoleGroupMap, error)
	FindActiveRoleGroupMaps(ctx storage.TransactionContext) ([]model.RoleGroupMap, error)
	InsertRoleGroupMap(ctx storage.TransactionContext, rgm model.RoleGroupMap) error
	EndRoleGroupMap(ctx storage.TransactionContext, id string, endedAt time.Time, endedActorID *string) error

	FindAccessRequest(ctx storage.TransactionContext, id string) (*model.AccessRequest, error)
	FindPendingAccessRequest(ctx storage.TransactionContext, requesterID string, groupID string) (*model.AccessRequest, error)
	FindPendingAccessRequestsForGroup(ctx storage.TransactionContext, groupID string) ([]model.AccessRequest, error)
	FindPendingAccessRequests(ctx storage.TransactionContext) ([]model.AccessRequest, error)
	FindPendingAccessRequestsForUser(ctx storage.TransactionContext, requesterID string) ([]model.AccessRequest, error)
	InsertAccessRequest(ctx storage.TransactionContext, req model.AccessRequest) error
	ResolveAccessRequest(ctx storage.TransactionContext, req model.AccessRequest) error

	FindRoleRequest(ctx storage.TransactionContext, id string) (*model.RoleRequest, error)
	FindPendingRoleRequest(ctx storage.TransactionContext, roleGroupID string, groupID string) (*model.RoleRequest, error)
	FindPendingRoleRequests(ctx storage.TransactionContext) ([]model.RoleRequest, error)
	FindPendingRoleRequestsForUser(ctx storage.TransactionContext, requesterID string) ([]model.RoleRequest, error)
	InsertRoleRequest(ctx storage.TransactionContext, req model.RoleRequest) error
	ResolveRoleRequest(ctx storage.TransactionContext, req model.RoleRequest) error

	FindGroupRequest(ctx storage.TransactionContext, id string) (*model.GroupRequest, error)
	FindPendingGroupRequest(ctx storage.TransactionContext, requestedName string, requestedAppID *string) (*model.GroupRequest, error)
	InsertGroupRequest(ctx storage.TransactionContext, req model.GroupRequest) error
	ResolveGroupRequest(ctx storage.TransactionContext, req model.GroupRequest) error

	FindSyncConfigs(ctx storage.TransactionContext) ([]model.SyncConfig, error)
	GetCachedSyncConfig(sweepType string) (*model.SyncConfig, error)
	FindSyncTimes(ctx storage.TransactionContext, key string) (*model.SyncTimes, error)
	SaveSyncTimes(ctx storage.TransactionContext, times model.SyncTimes) error
}

// IdPCall describes one deferred IdP mutation dispatched after commit,
// grounded on the teacher's authman adapter's one-call-per-membership-change
// shape, generalized away from Authman specifics.
type IdPCall struct {
	GroupID string
	UserID  string
	IsOwner bool
	Add     bool // true: add, false: remove
}

// IdPClient is the external identity-provider collaborator (§6). All
// operations are idempotent: "already added"/"already removed" is success.
type IdPClient interface {
	ListUsers() ([]model.User, error)
	ListGroups() ([]IdPGroup, error)
	ListUsersForGroup(idpGroupID string) ([]string, error)
	ListGroupsWithActiveRules() (map[string]bool, error)

	CreateGroup(name string, description string) (string, error)
	UpdateGroup(idpGroupID string, name string, description string) error
	DeleteGroup(idpGroupID string) error

	AddUserToGroup(idpGroupID string, userID string) error
	RemoveUserFromGroup(idpGroupID string, userID string) error
	AddOwnerToGroup(idpGroupID string, userID string) error
	RemoveOwnerFromGroup(idpGroupID string, userID string) error
}

// IdPGroup is a group as seen from the IdP side of the mirror.
type IdPGroup struct {
	ID          string
	Name        string
	Description string
}

// NotificationHook is the fire-and-forget notification collaborator (§6).
// AccessRequestCreated/AccessRoleRequestCreated take the already-resolved
// approver set (§4.5's owners -> app managers -> access admins precedence,
// resolved in core/requests.go) so the hook only has to address, not decide.
type NotificationHook interface {
	AccessRequestCreated(req model.AccessRequest, group model.Group, approverIDs []string)
	AccessRequestCompleted(req model.AccessRequest, group model.Group)
	AccessRoleRequestCreated(req model.RoleRequest, group model.Group, approverIDs []string)
	AccessRoleRequestCompleted(req model.RoleRequest, group model.Group)
	ExpiringUser(grant model.Grant, group model.Group)
	ExpiringOwner(grant model.Grant, group model.Group)
	ExpiringRoleOwner(roleMap model.RoleGroupMap, group model.Group)
}

// ConditionalAccessDecision is the synchronous hook's verdict on a request.
type ConditionalAccessDecision struct {
	Decided   bool
	Approved  bool
	Reason    string
	EndingAt  *time.Time
}

// ConditionalAccessHook may short-circuit an AccessRequest/RoleRequest to
// approved or rejected before it ever becomes pending (§4.5, §6).
type ConditionalAccessHook interface {
	EvaluateAccessRequest(req model.AccessRequest, group model.Group, tags []model.Tag, requester model.User) ConditionalAccessDecision
	EvaluateRoleRequest(req model.RoleRequest, group model.Group, tags []model.Tag, requester model.User) ConditionalAccessDecision
}

// AuditHook receives the audit envelope after every commit (§6, §7).
type AuditHook interface {
	LogEvent(envelope model.AuditEnvelope)
}

// MetricsHook emits named counters for the operations the engine performs.
type MetricsHook interface {
	Increment(name string, tags map[string]string)
}
