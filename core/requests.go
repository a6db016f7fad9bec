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

// CreateAccessRequest is the entry point for a user asking for membership or
// ownership of an existing group (§4.5). Rejects unmanaged groups, consults
// the conditional-access hook, and otherwise persists a pending request and
// notifies the resolved approver set.
func (app *Application) CreateAccessRequest(groupID string, requesterID string, requestOwnership bool, reason string, requestEndingAt *time.Time) (*model.AccessRequest, utils.Error) {
	group, err := app.storage.FindGroup(nil, groupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if group == nil || group.IsDeleted() {
		return nil, utils.NewNotFoundError()
	}
	if !group.IsManaged {
		return nil, utils.NewConflictError("cannot request access to an unmanaged group")
	}
	if existing, err := app.storage.FindPendingAccessRequest(nil, requesterID, groupID); err != nil {
		return nil, utils.NewStoreFailureError(err)
	} else if existing != nil {
		return nil, utils.NewConflictError("a pending request already exists for this group")
	}

	requester, err := app.storage.FindUser(nil, requesterID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if requester == nil || requester.IsDeleted() {
		return nil, utils.NewNotFoundError()
	}

	req := model.AccessRequest{
		ID:               uuid.NewString(),
		RequesterID:      requesterID,
		RequestedGroupID: groupID,
		RequestOwnership: requestOwnership,
		RequestReason:    reason,
		RequestEndingAt:  requestEndingAt,
		DateCreated:      time.Now(),
	}
	req.Status = model.RequestStatusPending

	if err := app.storage.InsertAccessRequest(nil, req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventAccessRequestCreate,
		Timestamp:  time.Now().Unix(),
		ActorID:    &requesterID,
		TargetType: "access_request",
		TargetID:   req.ID,
		Action:     "create",
	})

	if app.config.ConditionalAccessEnabled && app.conditionalAccess != nil {
		tags, tagErr := app.groupTags(nil, groupID)
		if tagErr == nil {
			decision := app.conditionalAccess.EvaluateAccessRequest(req, *group, tags, *requester)
			if decision.Decided {
				if decision.Approved {
					_, approveErr := app.ApproveAccessRequest(req.ID, "conditional-access", decision.Reason, decision.EndingAt, false)
					if approveErr != nil {
						return nil, approveErr
					}
				} else {
					if _, rejectErr := app.RejectAccessRequest(req.ID, "conditional-access", decision.Reason); rejectErr != nil {
						return nil, rejectErr
					}
				}
				resolved, findErr := app.storage.FindAccessRequest(nil, req.ID)
				if findErr != nil {
					return nil, utils.NewStoreFailureError(findErr)
				}
				return resolved, nil
			}
		}
	}

	app.notifyAccessApprovers(*group, req)

	return &req, nil
}

// ApproveAccessRequest re-validates the approval invariants then runs the
// grant-engine primitive, which materializes the grant and then flips the
// request to approved in its resolve pass, a transaction of its own that
// runs after the grant insert has committed (§4.4.1 step 10).
func (app *Application) ApproveAccessRequest(requestID string, actorID string, reason string, endingAt *time.Time, notify bool) (*model.AccessRequest, utils.Error) {
	req, err := app.storage.FindAccessRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError()
	}
	if req.Status.IsTerminal() {
		return nil, utils.NewConflictError("request already resolved")
	}
	if req.RequesterID == actorID {
		return nil, utils.NewForbiddenError()
	}

	requester, err := app.storage.FindUser(nil, req.RequesterID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if requester == nil || requester.IsDeleted() {
		return nil, utils.NewConflictError("requester no longer active")
	}

	group, err := app.storage.FindGroup(nil, req.RequestedGroupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if group == nil || group.IsDeleted() || !group.IsManaged {
		return nil, utils.NewConflictError("requested group is no longer active and managed")
	}

	in := ModifyGroupUsersInput{
		GroupID:            group.ID,
		UsersAddedEndingAt: endingAt,
		CurrentActorID:     actorID,
		CreatedReason:      reason,
		SyncToIdP:          true,
		Notify:             notify,
	}
	if req.RequestOwnership {
		in.OwnersToAdd = []string{req.RequesterID}
	} else {
		in.MembersToAdd = []string{req.RequesterID}
	}

	if _, modErr := app.ModifyGroupUsers(in); modErr != nil {
		return nil, modErr
	}

	resolved, err := app.storage.FindAccessRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	return resolved, nil
}

// RejectAccessRequest sets the terminal rejected state and notifies the
// requester; used directly, by the reconciler's request-expiry sweep and by
// its unmanaged-group repair.
// The group-delete and user soft-delete cascades reject inline instead.
func (app *Application) RejectAccessRequest(requestID string, actorID string, reason string) (*model.AccessRequest, utils.Error) {
	req, err := app.storage.FindAccessRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError()
	}
	if req.Status.IsTerminal() {
		return req, nil
	}

	actor := actorID
	req.Resolve(model.RequestStatusRejected, time.Now(), &actor, reason)
	if err := app.storage.ResolveAccessRequest(nil, *req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}

	group, err := app.storage.FindGroup(nil, req.RequestedGroupID)
	if err == nil && group != nil {
		app.notifications.AccessRequestCompleted(*req, *group)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventAccessRequestComplete,
		Timestamp:  time.Now().Unix(),
		ActorID:    &actorID,
		TargetType: "access_request",
		TargetID:   req.ID,
		Action:     "reject",
		Reason:     &reason,
	})
	return req, nil
}

// CreateRoleRequest asks for the requester's role to be attached to a target
// group, mirroring CreateAccessRequest but effecting ModifyRoleGroups on
// approval (§4.5).
func (app *Application) CreateRoleRequest(roleGroupID string, requesterID string, targetGroupID string, requestOwnership bool, reason string, requestEndingAt *time.Time) (*model.RoleRequest, utils.Error) {
	role, err := app.storage.FindGroup(nil, roleGroupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if role == nil || !role.IsRole() {
		return nil, utils.NewValidationError(nil)
	}
	target, err := app.storage.FindGroup(nil, targetGroupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if target == nil || target.IsDeleted() || !target.IsManaged || target.IsRole() {
		return nil, utils.NewConflictError("target group must be an active managed non-role group")
	}
	if existing, err := app.storage.FindPendingRoleRequest(nil, roleGroupID, targetGroupID); err != nil {
		return nil, utils.NewStoreFailureError(err)
	} else if existing != nil {
		return nil, utils.NewConflictError("a pending role request already exists for this group")
	}

	req := model.RoleRequest{
		ID:               uuid.NewString(),
		RequesterID:      requesterID,
		RequesterRoleID:  roleGroupID,
		RequestedGroupID: targetGroupID,
		RequestOwnership: requestOwnership,
		RequestReason:    reason,
		RequestEndingAt:  requestEndingAt,
		DateCreated:      time.Now(),
	}
	req.Status = model.RequestStatusPending
	if err := app.storage.InsertRoleRequest(nil, req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	approvers, _ := app.resolveRoleRequestApprovers(nil, *target, roleGroupID, requesterID)
	app.notifications.AccessRoleRequestCreated(req, *target, approvers)
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventRoleRequestCreate,
		Timestamp:  time.Now().Unix(),
		ActorID:    &requesterID,
		TargetType: "role_request",
		TargetID:   req.ID,
		Action:     "create",
	})
	return &req, nil
}

// ApproveRoleRequest attaches the requester's role to the target group via
// ModifyRoleGroups, then resolves the request.
func (app *Application) ApproveRoleRequest(requestID string, actorID string, reason string, endingAt *time.Time) (*model.RoleRequest, utils.Error) {
	req, err := app.storage.FindRoleRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError()
	}
	if req.Status.IsTerminal() {
		return nil, utils.NewConflictError("request already resolved")
	}

	in := ModifyRoleGroupsInput{
		RoleGroupID:        req.RequesterRoleID,
		GroupsAddedEndingAt: endingAt,
		CurrentActorID:     actorID,
		CreatedReason:      reason,
	}
	if req.RequestOwnership {
		in.OwnerLinksToAdd = []string{req.RequestedGroupID}
	} else {
		in.MemberLinksToAdd = []string{req.RequestedGroupID}
	}
	if _, modErr := app.ModifyRoleGroups(in); modErr != nil {
		return nil, modErr
	}

	actor := actorID
	req.Resolve(model.RequestStatusApproved, time.Now(), &actor, reason)
	req.ApprovalEndingAt = endingAt
	if err := app.storage.ResolveRoleRequest(nil, *req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if target, err := app.storage.FindGroup(nil, req.RequestedGroupID); err == nil && target != nil {
		app.notifications.AccessRoleRequestCompleted(*req, *target)
	}
	return req, nil
}

// RejectRoleRequest sets the terminal rejected state for a pending RoleRequest.
func (app *Application) RejectRoleRequest(requestID string, actorID string, reason string) (*model.RoleRequest, utils.Error) {
	req, err := app.storage.FindRoleRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError()
	}
	if req.Status.IsTerminal() {
		return req, nil
	}
	actor := actorID
	req.Resolve(model.RequestStatusRejected, time.Now(), &actor, reason)
	if err := app.storage.ResolveRoleRequest(nil, *req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if target, err := app.storage.FindGroup(nil, req.RequestedGroupID); err == nil && target != nil {
		app.notifications.AccessRoleRequestCompleted(*req, *target)
	}
	return req, nil
}

// CreateGroupRequest asks that a new group be created. Short-circuits to
// approved when the requester already owns the parent App (§4.5).
func (app *Application) CreateGroupRequest(requesterID string, requestedType model.GroupType, requestedName string, requestedAppID *string, reason string) (*model.GroupRequest, utils.Error) {
	if requestedType == model.GroupTypeApp && (requestedAppID == nil || *requestedAppID == "") {
		return nil, utils.NewValidationError(nil)
	}
	var parentApp *model.App
	if requestedAppID != nil {
		app2, err := app.storage.FindApp(nil, *requestedAppID)
		if err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
		if app2 == nil || app2.IsDeleted() {
			return nil, utils.NewNotFoundError()
		}
		parentApp = app2
		if !model.ValidateName(requestedType, requestedName, app2.Name) {
			return nil, utils.NewValidationError(nil)
		}
	}
	if existing, err := app.storage.FindPendingGroupRequest(nil, requestedName, requestedAppID); err != nil {
		return nil, utils.NewStoreFailureError(err)
	} else if existing != nil {
		return nil, utils.NewConflictError("a pending group request already exists for this name")
	}

	req := model.GroupRequest{
		ID:              uuid.NewString(),
		RequesterID:     requesterID,
		RequestedType:   requestedType,
		RequestedName:   requestedName,
		RequestedAppID:  requestedAppID,
		RequestedReason: reason,
		ResolvedName:    requestedName,
		DateCreated:     time.Now(),
	}
	req.Status = model.RequestStatusPending

	if err := app.storage.InsertGroupRequest(nil, req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupRequestCreate,
		Timestamp:  time.Now().Unix(),
		ActorID:    &requesterID,
		TargetType: "group_request",
		TargetID:   req.ID,
		Action:     "create",
	})

	if parentApp != nil {
		ownsApp, err := app.actorOwnsApp(nil, requesterID, parentApp.ID)
		if err == nil && ownsApp {
			resolved, approveErr := app.approveGroupRequest(req.ID, requesterID, "requester owns parent app")
			if approveErr != nil {
				return nil, approveErr
			}
			return resolved, nil
		}
	}

	return &req, nil
}

func (app *Application) approveGroupRequest(requestID string, actorID string, reason string) (*model.GroupRequest, utils.Error) {
	req, err := app.storage.FindGroupRequest(nil, requestID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError()
	}
	if req.Status.IsTerminal() {
		return req, nil
	}

	group, createErr := app.CreateGroup(CreateGroupInput{
		Type:           req.RequestedType,
		Name:           req.ResolvedName,
		Description:    req.ResolvedDescription,
		AppID:          req.RequestedAppID,
		CurrentActorID: actorID,
		CreatedReason:  reason,
	})
	if createErr != nil {
		return nil, createErr
	}

	actor := actorID
	req.Resolve(model.RequestStatusApproved, time.Now(), &actor, reason)
	req.CreatedGroupID = &group.ID
	if err := app.storage.ResolveGroupRequest(nil, *req); err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	return req, nil
}

// actorOwnsApp reports whether actorID holds an active owner grant on the
// App's app-owner group.
func (app *Application) actorOwnsApp(ctx storage.TransactionContext, actorID string, appID string) (bool, error) {
	groups, err := app.storage.FindGroups(ctx, groupTypePtr(model.GroupTypeApp), &appID)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if !g.IsAppOwnerGroup() {
			continue
		}
		grant, err := app.storage.FindActiveGrant(ctx, actorID, g.ID, true)
		if err != nil {
			return false, err
		}
		if grant != nil {
			return true, nil
		}
	}
	return false, nil
}

// notifyAccessApprovers resolves the approver precedence of §4.5 (group
// owners -> app managers -> access admins, each tier excluding the requester,
// falling through when a tier is empty after exclusion) and fires the
// request-created notification addressed to that set.
func (app *Application) notifyAccessApprovers(group model.Group, req model.AccessRequest) {
	approvers, _ := app.resolveApprovers(nil, group, req.RequesterID)
	app.notifications.AccessRequestCreated(req, group, approvers)
}

// resolveApprovers walks group owners -> app managers -> access admins,
// excluding the requester at each tier, falling through to the next tier
// when the exclusion empties it.
func (app *Application) resolveApprovers(ctx storage.TransactionContext, group model.Group, excludeID string) ([]string, error) {
	owners, err := app.storage.FindActiveGrantsForGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	var tier []string
	for _, g := range owners {
		if g.IsOwner && g.UserID != excludeID {
			tier = append(tier, g.UserID)
		}
	}
	if len(tier) > 0 {
		return tier, nil
	}

	if group.IsApp() && group.AppID != nil {
		managers, err := app.actorOwnsAppManagers(ctx, *group.AppID, excludeID)
		if err != nil {
			return nil, err
		}
		if len(managers) > 0 {
			return managers, nil
		}
	}

	admins, err := app.storage.FindAppByName(ctx, model.AccessAppName)
	if err != nil || admins == nil {
		return nil, err
	}
	return app.actorOwnsAppManagers(ctx, admins.ID, excludeID)
}

// resolveRoleRequestApprovers is resolveApprovers with one extra filter: a
// candidate approver who is also an active member of the requester's role is
// excluded when the target group disallows self-add - approving would grant
// that approver transitive access to the thing they just approved (§4.5).
func (app *Application) resolveRoleRequestApprovers(ctx storage.TransactionContext, target model.Group, roleGroupID string, excludeID string) ([]string, error) {
	candidates, err := app.resolveApprovers(ctx, target, excludeID)
	if err != nil {
		return nil, err
	}
	policy, err := app.groupPolicy(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if !policy.DisallowSelfAddMember && !policy.DisallowSelfAddOwner {
		return candidates, nil
	}
	var filtered []string
	for _, candidate := range candidates {
		isRoleMember, err := app.userIsActiveGrantHolder(ctx, roleGroupID, candidate, false)
		if err != nil {
			return nil, err
		}
		if !isRoleMember {
			filtered = append(filtered, candidate)
		}
	}
	return filtered, nil
}

func (app *Application) actorOwnsAppManagers(ctx storage.TransactionContext, appID string, excludeID string) ([]string, error) {
	groups, err := app.storage.FindGroups(ctx, groupTypePtr(model.GroupTypeApp), &appID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, g := range groups {
		if !g.IsAppOwnerGroup() {
			continue
		}
		grants, err := app.storage.FindActiveGrantsForGroup(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, grant := range grants {
			if grant.IsOwner && grant.UserID != excludeID {
				out = append(out, grant.UserID)
			}
		}
	}
	return out, nil
}
