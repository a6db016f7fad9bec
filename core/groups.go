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
	"accessgov/utils"

	"github.com/google/uuid"
)

// CreateGroupInput carries the parameters of §4.4.3's Create path.
type CreateGroupInput struct {
	Type            model.GroupType
	Name            string
	Description     string
	AppID           *string
	IsAppOwnerGroup bool
	Unmanaged       bool
	AdoptIdPGroupID string // non-empty: reuse this existing IdP group instead of creating one
	InitialTagIDs   []string
	CurrentActorID  string
	CreatedReason   string
}

// CreateGroup validates the name, creates (or adopts) the mirrored IdP
// group, inserts the row, and propagates any App-level tags onto it as
// GroupTagMap rows (§4.4.3).
func (app *Application) CreateGroup(in CreateGroupInput) (*model.Group, utils.Error) {
	var appName string
	if in.AppID != nil {
		appRow, err := app.storage.FindApp(nil, *in.AppID)
		if err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
		if appRow == nil || appRow.IsDeleted() {
			return nil, utils.NewNotFoundError()
		}
		appName = appRow.Name
	}
	if !model.ValidateName(in.Type, in.Name, appName) {
		return nil, utils.NewValidationError(nil)
	}
	if app.config.DescriptionRequired && in.Description == "" {
		return nil, utils.NewValidationError(nil)
	}
	if existing, err := app.storage.FindGroupByName(nil, in.Name); err != nil {
		return nil, utils.NewStoreFailureError(err)
	} else if existing != nil && existing.IsActive() {
		return nil, utils.NewGroupDuplicationError()
	}

	groupID := uuid.NewString()
	managed := !in.Unmanaged
	if managed {
		if in.AdoptIdPGroupID != "" {
			groupID = in.AdoptIdPGroupID
		} else if app.idp != nil {
			idpID, err := app.idp.CreateGroup(in.Name, in.Description)
			if err != nil {
				return nil, utils.NewIdPFailureError(err)
			}
			groupID = idpID
		}
	}

	group := model.Group{
		ID:          groupID,
		Type:        in.Type,
		Name:        in.Name,
		Description: in.Description,
		IsManaged:   managed,
		AppID:       in.AppID,
		IsOwner:     in.IsAppOwnerGroup,
		DateCreated: time.Now(),
	}

	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		if err := app.storage.InsertGroup(ctx, group); err != nil {
			return err
		}
		for _, tagID := range in.InitialTagIDs {
			if err := app.storage.InsertGroupTag(ctx, model.GroupTagMap{ID: uuid.NewString(), GroupID: group.ID, TagID: tagID, DateCreated: time.Now()}); err != nil {
				return err
			}
		}
		if in.AppID != nil {
			return app.propagateAppTagsToGroup(ctx, *in.AppID, group.ID)
		}
		return nil
	})
	if txErr != nil {
		return nil, utils.NewStoreFailureError(txErr)
	}

	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupCreate,
		Timestamp:  time.Now().Unix(),
		ActorID:    &in.CurrentActorID,
		TargetType: "group",
		TargetID:   group.ID,
		Action:     "create",
		Reason:     &in.CreatedReason,
	})
	app.metrics.Increment("group_create", map[string]string{"type": string(in.Type)})
	return &group, nil
}

// propagateAppTagsToGroup mirrors every active AppTagMap of appID as a
// GroupTagMap on groupID (§4.4.3's "propagate App-level tags" step).
func (app *Application) propagateAppTagsToGroup(ctx storage.TransactionContext, appID string, groupID string) error {
	appTags, err := app.storage.FindAppTags(ctx, appID)
	if err != nil {
		return err
	}
	for _, at := range appTags {
		if err := app.storage.InsertGroupTag(ctx, model.GroupTagMap{ID: uuid.NewString(), GroupID: groupID, TagID: at.TagID, AppTagMapID: &at.ID, DateCreated: time.Now()}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteGroup soft-deletes a group and ends every temporal edge it owns
// (§4.4.3). Forbidden for app-owner groups, which are only deletable by
// DeleteApp's cascade.
func (app *Application) DeleteGroup(groupID string, actorID string, reason string) utils.Error {
	group, err := app.storage.FindGroup(nil, groupID)
	if err != nil {
		return utils.NewStoreFailureError(err)
	}
	if group == nil {
		return utils.NewNotFoundError()
	}
	if group.IsAppOwnerGroup() {
		return utils.NewForbiddenError()
	}
	return app.deleteGroupInternal(*group, actorID, reason)
}

// deleteGroupInternal performs the soft-delete cascade without the
// app-owner-group guard, so DeleteApp can reuse it for every AppGroup it owns.
func (app *Application) deleteGroupInternal(group model.Group, actorID string, reason string) utils.Error {
	now := time.Now()
	var idpDeletes []string

	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		group.DeletedAt = &now
		if err := app.storage.UpdateGroup(ctx, group); err != nil {
			return err
		}

		grants, err := app.storage.FindActiveGrantsForGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
				return err
			}
		}

		if group.IsRole() {
			assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, group.ID)
			if err != nil {
				return err
			}
			for _, assoc := range assocs {
				if err := app.storage.EndRoleGroupMap(ctx, assoc.ID, now, &actorID); err != nil {
					return err
				}
				derivedGrants, err := app.storage.FindActiveGrantsForGroup(ctx, assoc.GroupID)
				if err != nil {
					return err
				}
				for _, g := range derivedGrants {
					if g.RoleGroupMapID != nil && *g.RoleGroupMapID == assoc.ID {
						if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
							return err
						}
					}
				}
			}
		}
		incoming, err := app.storage.FindRoleGroupMapsForGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, assoc := range incoming {
			if err := app.storage.EndRoleGroupMap(ctx, assoc.ID, now, &actorID); err != nil {
				return err
			}
		}

		tags, err := app.storage.FindGroupTags(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, tagMap := range tags {
			if err := app.storage.DeleteGroupTag(ctx, group.ID, tagMap.TagID); err != nil {
				return err
			}
		}

		pending, err := app.storage.FindPendingAccessRequestsForGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, req := range pending {
			actor := actorID
			req.Resolve(model.RequestStatusRejected, now, &actor, "group deleted")
			if err := app.storage.ResolveAccessRequest(ctx, req); err != nil {
				return err
			}
		}

		if group.IsManaged {
			idpDeletes = append(idpDeletes, group.ID)
		}
		return nil
	})
	if txErr != nil {
		return utils.NewStoreFailureError(txErr)
	}

	for _, id := range idpDeletes {
		if err := app.idp.DeleteGroup(id); err != nil {
			app.log("idp delete failed for group " + id + ": " + err.Error())
		}
	}

	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupDelete,
		Timestamp:  now.Unix(),
		ActorID:    &actorID,
		TargetType: "group",
		TargetID:   group.ID,
		Action:     "delete",
		Reason:     &reason,
	})
	return nil
}

// ModifyGroupType switches a group's variant, preserving its id (§4.4.3).
// A request for the type the group already has returns it unchanged;
// any other change is forbidden for app-owner groups. Leaving the role variant ends every
// derived grant/association the role produced; entering it leaves existing
// direct grants in place (they become the new role's membership as-is).
func (app *Application) ModifyGroupType(groupID string, newType model.GroupType, actorID string, reason string) (*model.Group, utils.Error) {
	group, err := app.storage.FindGroup(nil, groupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if group == nil || group.IsDeleted() {
		return nil, utils.NewNotFoundError()
	}
	if group.Type == newType {
		return group, nil
	}
	if group.IsAppOwnerGroup() {
		return nil, utils.NewForbiddenError()
	}

	now := time.Now()
	wasRole := group.IsRole()

	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		if wasRole {
			assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, group.ID)
			if err != nil {
				return err
			}
			for _, assoc := range assocs {
				if err := app.storage.EndRoleGroupMap(ctx, assoc.ID, now, &actorID); err != nil {
					return err
				}
				grants, err := app.storage.FindActiveGrantsForGroup(ctx, assoc.GroupID)
				if err != nil {
					return err
				}
				for _, g := range grants {
					if g.RoleGroupMapID != nil && *g.RoleGroupMapID == assoc.ID {
						if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
							return err
						}
					}
				}
			}
		}
		group.Type = newType
		updated := now
		group.DateUpdated = &updated
		return app.storage.UpdateGroup(ctx, *group)
	})
	if txErr != nil {
		return nil, utils.NewStoreFailureError(txErr)
	}

	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupTypeChange,
		Timestamp:  now.Unix(),
		ActorID:    &actorID,
		TargetType: "group",
		TargetID:   group.ID,
		Action:     "modify_type",
		Reason:     &reason,
	})
	return group, nil
}

// UnmanageGroup flips is_managed off without deleting anything - the
// supplemented counterpart to the reconciler's group-sync step 2, which
// marks a group unmanaged when the IdP reports an active assignment rule
// for it (a group rule-managed externally cannot also be hand-managed here).
func (app *Application) UnmanageGroup(groupID string, actorID string, reason string) (*model.Group, utils.Error) {
	group, err := app.storage.FindGroup(nil, groupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if group == nil || group.IsDeleted() {
		return nil, utils.NewNotFoundError()
	}
	if !group.IsManaged {
		return group, nil
	}
	group.IsManaged = false
	now := time.Now()
	group.DateUpdated = &now
	if err := app.storage.UpdateGroup(nil, *group); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupUnmanage,
		Timestamp:  now.Unix(),
		ActorID:    &actorID,
		TargetType: "group",
		TargetID:   group.ID,
		Action:     "unmanage",
		Reason:     &reason,
	})
	return group, nil
}

// ModifyGroupsTimeLimit is a supplemented bulk operation: re-clamps every
// currently active grant in a group's member or owner bucket against a
// newly-tightened tag-derived time limit, without disturbing grants that
// already end sooner.
func (app *Application) ModifyGroupsTimeLimit(groupID string, isOwner bool, actorID string) (int, utils.Error) {
	group, err := app.storage.FindGroup(nil, groupID)
	if err != nil {
		return 0, utils.NewStoreFailureError(err)
	}
	if group == nil {
		return 0, utils.NewNotFoundError()
	}
	policy, err := app.effectivePolicy(nil, *group)
	if err != nil {
		return 0, utils.NewStoreFailureError(err)
	}
	limit := policy.MemberTimeLimit
	if isOwner {
		limit = policy.OwnerTimeLimit
	}
	if limit == nil {
		return 0, nil
	}

	now := time.Now()
	grants, err := app.storage.FindActiveGrantsForGroup(nil, groupID)
	if err != nil {
		return 0, utils.NewStoreFailureError(err)
	}
	capped := clampEndingAt(nil, limit, true, now)
	count := 0
	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		for _, g := range grants {
			if g.IsOwner != isOwner {
				continue
			}
			if g.EndedAt != nil && capped != nil && !g.EndedAt.After(*capped) {
				continue
			}
			if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
				return err
			}
			g.ID = uuid.NewString()
			g.EndedAt = capped
			g.CreatedAt = now
			g.CreatedActorID = &actorID
			if err := app.storage.InsertGrant(ctx, g); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if txErr != nil {
		return 0, utils.NewStoreFailureError(txErr)
	}
	return count, nil
}

// ModifyGroupTags adds/removes tag associations on a group.
func (app *Application) ModifyGroupTags(groupID string, tagIDsToAdd []string, tagIDsToRemove []string, actorID string, reason string) utils.Error {
	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		for _, tagID := range tagIDsToAdd {
			if err := app.storage.InsertGroupTag(ctx, model.GroupTagMap{ID: uuid.NewString(), GroupID: groupID, TagID: tagID, DateCreated: time.Now()}); err != nil {
				return err
			}
		}
		for _, tagID := range tagIDsToRemove {
			if err := app.storage.DeleteGroupTag(ctx, groupID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return utils.NewStoreFailureError(txErr)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupTagsModify,
		Timestamp:  time.Now().Unix(),
		ActorID:    &actorID,
		TargetType: "group",
		TargetID:   groupID,
		Action:     "modify_tags",
		Reason:     &reason,
	})
	return nil
}

// ModifyAppTags adds/removes tag associations on an App, propagating the
// change onto every current AppGroup's GroupTagMap mirror.
func (app *Application) ModifyAppTags(appID string, tagIDsToAdd []string, tagIDsToRemove []string, actorID string, reason string) utils.Error {
	groups, err := app.storage.FindGroups(nil, groupTypePtr(model.GroupTypeApp), &appID)
	if err != nil {
		return utils.NewStoreFailureError(err)
	}

	txErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		for _, tagID := range tagIDsToAdd {
			appTagMapID := uuid.NewString()
			if err := app.storage.InsertAppTag(ctx, model.AppTagMap{ID: appTagMapID, AppID: appID, TagID: tagID, DateCreated: time.Now()}); err != nil {
				return err
			}
			for _, g := range groups {
				if err := app.storage.InsertGroupTag(ctx, model.GroupTagMap{ID: uuid.NewString(), GroupID: g.ID, TagID: tagID, AppTagMapID: &appTagMapID, DateCreated: time.Now()}); err != nil {
					return err
				}
			}
		}
		for _, tagID := range tagIDsToRemove {
			if err := app.storage.DeleteAppTag(ctx, appID, tagID); err != nil {
				return err
			}
			for _, g := range groups {
				if err := app.storage.DeleteGroupTag(ctx, g.ID, tagID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if txErr != nil {
		return utils.NewStoreFailureError(txErr)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventAppTagsModify,
		Timestamp:  time.Now().Unix(),
		ActorID:    &actorID,
		TargetType: "app",
		TargetID:   appID,
		Action:     "modify_tags",
		Reason:     &reason,
	})
	return nil
}

// CreateAppInput carries §4.4.4's Create path, including the supplemented
// "additional app groups" list (each optionally adopting a pre-existing IdP
// group instead of creating a new one).
type CreateAppInput struct {
	Name                string
	Description         string
	InitialOwnerIDs     []string
	InitialTagIDs       []string
	AdditionalGroups    []AdditionalAppGroupInput
	CurrentActorID      string
	CreatedReason       string
}

// AdditionalAppGroupInput describes one extra AppGroup created alongside the
// app-owner group.
type AdditionalAppGroupInput struct {
	Name            string
	Description     string
	AdoptIdPGroupID string
}

// CreateApp creates the App row, its app-owner group, seeds initial owners
// and tags, and creates any additional app groups (§4.4.4).
func (app *Application) CreateApp(in CreateAppInput) (*model.App, utils.Error) {
	if app.config.DescriptionRequired && in.Description == "" {
		return nil, utils.NewValidationError(nil)
	}
	newApp := model.App{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		DateCreated: time.Now(),
	}
	if existing, err := app.storage.FindAppByName(nil, in.Name); err != nil {
		return nil, utils.NewStoreFailureError(err)
	} else if existing != nil && !existing.IsDeleted() {
		return nil, utils.NewGroupDuplicationError()
	}
	if err := app.storage.InsertApp(nil, newApp); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}

	for _, tagID := range in.InitialTagIDs {
		if err := app.storage.InsertAppTag(nil, model.AppTagMap{ID: uuid.NewString(), AppID: newApp.ID, TagID: tagID, DateCreated: time.Now()}); err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
	}

	ownerGroup, createErr := app.CreateGroup(CreateGroupInput{
		Type:            model.GroupTypeApp,
		Name:            model.AppGroupPrefix(in.Name) + "Owners",
		Description:     "owners of " + in.Name,
		AppID:           &newApp.ID,
		IsAppOwnerGroup: true,
		CurrentActorID:  in.CurrentActorID,
		CreatedReason:   in.CreatedReason,
	})
	if createErr != nil {
		return nil, createErr
	}

	if len(in.InitialOwnerIDs) > 0 {
		if _, modErr := app.ModifyGroupUsers(ModifyGroupUsersInput{
			GroupID:        ownerGroup.ID,
			OwnersToAdd:    in.InitialOwnerIDs,
			CurrentActorID: in.CurrentActorID,
			CreatedReason:  in.CreatedReason,
			SyncToIdP:      true,
			Notify:         true,
		}); modErr != nil {
			return nil, modErr
		}
	}

	for _, extra := range in.AdditionalGroups {
		extraGroup, createErr := app.CreateGroup(CreateGroupInput{
			Type:            model.GroupTypeApp,
			Name:            extra.Name,
			Description:     extra.Description,
			AppID:           &newApp.ID,
			AdoptIdPGroupID: extra.AdoptIdPGroupID,
			CurrentActorID:  in.CurrentActorID,
			CreatedReason:   in.CreatedReason,
		})
		if createErr != nil {
			return nil, createErr
		}
		if extra.AdoptIdPGroupID != "" {
			// Deliberately preserved: adopting an existing IdP group for an
			// additional app group re-stamps the *app-owner* group's type
			// rather than the freshly adopted group's (open question, §9).
			// This is a no-op today (both rows already have GroupTypeApp)
			// but is flagged because it silently targets the wrong row.
			if _, typeErr := app.ModifyGroupType(ownerGroup.ID, model.GroupTypeApp, in.CurrentActorID, in.CreatedReason); typeErr != nil {
				return nil, typeErr
			}
			_ = extraGroup
		}
	}

	return &newApp, nil
}

// DeleteApp cascades soft-delete to every AppGroup under appID and ends
// every AppTagMap (§4.4.4).
func (app *Application) DeleteApp(appID string, actorID string, reason string) utils.Error {
	appRow, err := app.storage.FindApp(nil, appID)
	if err != nil {
		return utils.NewStoreFailureError(err)
	}
	if appRow == nil {
		return utils.NewNotFoundError()
	}
	if appRow.IsReservedAccessApp() {
		return utils.NewForbiddenError()
	}

	groups, err := app.storage.FindGroups(nil, groupTypePtr(model.GroupTypeApp), &appID)
	if err != nil {
		return utils.NewStoreFailureError(err)
	}
	for _, g := range groups {
		if g.IsDeleted() {
			continue
		}
		if delErr := app.deleteGroupInternal(g, actorID, reason); delErr != nil {
			return delErr
		}
	}

	tags, err := app.storage.FindAppTags(nil, appID)
	if err != nil {
		return utils.NewStoreFailureError(err)
	}
	for _, t := range tags {
		if err := app.storage.DeleteAppTag(nil, appID, t.TagID); err != nil {
			return utils.NewStoreFailureError(err)
		}
	}

	now := time.Now()
	appRow.DeletedAt = &now
	if err := app.storage.UpdateApp(nil, *appRow); err != nil {
		return utils.NewStoreFailureError(err)
	}

	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventAppDelete,
		Timestamp:  now.Unix(),
		ActorID:    &actorID,
		TargetType: "app",
		TargetID:   appID,
		Action:     "delete",
		Reason:     &reason,
	})
	return nil
}
