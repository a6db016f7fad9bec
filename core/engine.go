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
	"fmt"
	"sync"
	"time"

	"accessgov/core/model"
	"accessgov/driven/storage"
	"accessgov/utils"

	"github.com/google/uuid"
)

// ModifyGroupUsersInput carries the parameters of §4.4.1.
type ModifyGroupUsersInput struct {
	GroupID              string
	UsersAddedEndingAt   *time.Time
	MembersToAdd         []string
	OwnersToAdd          []string
	MembersShouldExpire  []string
	OwnersShouldExpire   []string
	MembersToRemove      []string
	OwnersToRemove       []string
	CurrentActorID       string
	CreatedReason        string
	SyncToIdP            bool
	Notify               bool
}

func (in ModifyGroupUsersInput) empty() bool {
	return len(in.MembersToAdd) == 0 && len(in.OwnersToAdd) == 0 &&
		len(in.MembersShouldExpire) == 0 && len(in.OwnersShouldExpire) == 0 &&
		len(in.MembersToRemove) == 0 && len(in.OwnersToRemove) == 0
}

// ModifyGroupUsers is the grant engine's central primitive (§4.4.1): end the
// old grants, commit; add the new ones (direct, plus role fan-out when the
// group is a RoleGroup), commit; auto-resolve satisfied pending requests,
// commit; dispatch IdP writes and notifications after the fact.
func (app *Application) ModifyGroupUsers(in ModifyGroupUsersInput) (*model.Group, utils.Error) {
	now := time.Now()

	if in.empty() {
		group, err := app.storage.FindGroup(nil, in.GroupID)
		if err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
		if group == nil {
			return nil, utils.NewNotFoundError()
		}
		return group, nil
	}

	group, err := app.storage.FindGroup(nil, in.GroupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if group == nil {
		return nil, utils.NewNotFoundError()
	}

	policy, err := app.effectivePolicy(nil, *group)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}

	gate, err := app.selfAddGate(nil, *group, policy, in.CurrentActorID, in.MembersToAdd, in.OwnersToAdd, nil)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if !gate.Valid {
		return group, utils.NewPolicyDeniedError(gate.Message)
	}
	gate, err = app.reasonGate(nil, policy, in.CurrentActorID, in.CreatedReason)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if !gate.Valid {
		return group, utils.NewPolicyDeniedError(gate.Message)
	}

	membersEndingAt := clampEndingAt(in.UsersAddedEndingAt, policy.MemberTimeLimit, group.IsManaged, now)
	ownersEndingAt := clampEndingAt(in.UsersAddedEndingAt, policy.OwnerTimeLimit, group.IsManaged, now)

	var idpCalls []IdPCall
	var resolvedAccess []model.AccessRequest

	// End phase: direct grants for every user being removed or re-added,
	// plus (for a RoleGroup) every derived grant this role produced for a
	// user being removed.
	endErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		toEndMembers := unionIDs(in.MembersToRemove, in.MembersToAdd)
		toEndOwners := unionIDs(in.OwnersToRemove, in.OwnersToAdd)

		if err := app.endDirectGrants(ctx, group.ID, false, toEndMembers, in.CurrentActorID, now); err != nil {
			return err
		}
		if err := app.endDirectGrants(ctx, group.ID, true, toEndOwners, in.CurrentActorID, now); err != nil {
			return err
		}

		if group.IsRole() {
			if err := app.endDerivedGrantsForRole(ctx, group.ID, in.MembersToRemove, false, in.CurrentActorID, now); err != nil {
				return err
			}
			if err := app.endDerivedGrantsForRole(ctx, group.ID, in.OwnersToRemove, true, in.CurrentActorID, now); err != nil {
				return err
			}
		}

		// IdP removal: schedule only when no grant remains in the bucket.
		calls, err := app.planIdPRemovals(ctx, *group, in.MembersToRemove, false, in.SyncToIdP)
		if err != nil {
			return err
		}
		idpCalls = append(idpCalls, calls...)
		calls, err = app.planIdPRemovals(ctx, *group, in.OwnersToRemove, true, in.SyncToIdP)
		if err != nil {
			return err
		}
		idpCalls = append(idpCalls, calls...)

		return nil
	})
	if endErr != nil {
		return nil, utils.NewStoreFailureError(endErr)
	}

	// should_expire is a UI hint only, applied in its own pass (§4.4.1 step 7).
	expireErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		if err := app.markShouldExpire(ctx, group.ID, in.MembersShouldExpire, false); err != nil {
			return err
		}
		return app.markShouldExpire(ctx, group.ID, in.OwnersShouldExpire, true)
	})
	if expireErr != nil {
		return nil, utils.NewStoreFailureError(expireErr)
	}

	var insertedMemberGrants, insertedOwnerGrants []model.Grant

	addErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		grants, calls, err := app.addDirectGrants(ctx, *group, in.MembersToAdd, false, membersEndingAt, in.CurrentActorID, in.CreatedReason, in.SyncToIdP)
		if err != nil {
			return err
		}
		insertedMemberGrants = grants
		idpCalls = append(idpCalls, calls...)

		grants, calls, err = app.addDirectGrants(ctx, *group, in.OwnersToAdd, true, ownersEndingAt, in.CurrentActorID, in.CreatedReason, in.SyncToIdP)
		if err != nil {
			return err
		}
		insertedOwnerGrants = grants
		idpCalls = append(idpCalls, calls...)

		if group.IsRole() {
			derivedGrants, derivedCalls, err := app.fanOutRoleAttachToExistingGroups(ctx, group.ID, in.MembersToAdd, false, membersEndingAt, in.CurrentActorID, in.CreatedReason, in.SyncToIdP)
			if err != nil {
				return err
			}
			insertedMemberGrants = append(insertedMemberGrants, derivedGrants...)
			idpCalls = append(idpCalls, derivedCalls...)

			// Deliberately preserved: the owner branch of role fan-out onto
			// already-associated groups clamps with the member time limit,
			// not the owner one (open question, §9 - not a silent fix).
			derivedGrants, derivedCalls, err = app.fanOutRoleAttachToExistingGroups(ctx, group.ID, in.OwnersToAdd, true, membersEndingAt, in.CurrentActorID, in.CreatedReason, in.SyncToIdP)
			if err != nil {
				return err
			}
			insertedOwnerGrants = append(insertedOwnerGrants, derivedGrants...)
			idpCalls = append(idpCalls, derivedCalls...)
		}
		return nil
	})
	if addErr != nil {
		return nil, utils.NewStoreFailureError(addErr)
	}

	resolveErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		all := append(append([]model.Grant{}, insertedMemberGrants...), insertedOwnerGrants...)
		resolved, err := app.autoResolveAccessRequests(ctx, all, in.CurrentActorID, in.CreatedReason)
		if err != nil {
			return err
		}
		resolvedAccess = resolved
		return nil
	})
	if resolveErr != nil {
		return nil, utils.NewStoreFailureError(resolveErr)
	}

	app.dispatchIdPCalls(*group, idpCalls)

	if in.Notify {
		for _, req := range resolvedAccess {
			app.notifications.AccessRequestCompleted(req, *group)
		}
	}
	for _, req := range resolvedAccess {
		app.audit.LogEvent(model.AuditEnvelope{
			ID:         uuid.NewString(),
			EventType:  model.EventAccessRequestComplete,
			Timestamp:  now.Unix(),
			ActorID:    &in.CurrentActorID,
			TargetType: "access_request",
			TargetID:   req.ID,
			Action:     "auto_resolve",
		})
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventGroupModifyUsers,
		Timestamp:  now.Unix(),
		ActorID:    &in.CurrentActorID,
		TargetType: "group",
		TargetID:   group.ID,
		Action:     "modify_users",
		Reason:     &in.CreatedReason,
	})
	app.metrics.Increment("group_modify_users", map[string]string{"group_id": group.ID})

	return group, nil
}

// effectivePolicy coalesces a group's tags, or - for a RoleGroup - the
// role's own tags plus those of every group it is associated with (§4.2).
func (app *Application) effectivePolicy(ctx storage.TransactionContext, group model.Group) (coalescedPolicy, error) {
	if group.IsRole() {
		return app.rolePolicy(ctx, group.ID)
	}
	return app.groupPolicy(ctx, group.ID)
}

func unionIDs(a []string, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string{}, a...), b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// endDirectGrants ends every active direct grant in (group, isOwner) for the
// listed users.
func (app *Application) endDirectGrants(ctx storage.TransactionContext, groupID string, isOwner bool, userIDs []string, actorID string, now time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	grants, err := app.storage.FindActiveGrantsForGroup(ctx, groupID)
	if err != nil {
		return err
	}
	wanted := map[string]bool{}
	for _, id := range userIDs {
		wanted[id] = true
	}
	for _, g := range grants {
		if g.IsOwner != isOwner || !g.IsDirect() || !wanted[g.UserID] {
			continue
		}
		if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
			return err
		}
	}
	return nil
}

// endDerivedGrantsForRole ends every derived grant this role produced (across
// every associated group) for the listed users - propagating a role member
// removal to every group the role is attached to.
func (app *Application) endDerivedGrantsForRole(ctx storage.TransactionContext, roleGroupID string, userIDs []string, isOwner bool, actorID string, now time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, roleGroupID)
	if err != nil {
		return err
	}
	wanted := map[string]bool{}
	for _, id := range userIDs {
		wanted[id] = true
	}
	for _, assoc := range assocs {
		grants, err := app.storage.FindActiveGrantsForGroup(ctx, assoc.GroupID)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if g.RoleGroupMapID == nil || *g.RoleGroupMapID != assoc.ID || g.IsOwner != isOwner || !wanted[g.UserID] {
				continue
			}
			if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
				return err
			}
		}
	}
	return nil
}

// planIdPRemovals schedules an IdP removal for each removed user who no
// longer holds any active grant (of any origin) in the bucket, and - for a
// RoleGroup - the equivalent removals on every associated group.
func (app *Application) planIdPRemovals(ctx storage.TransactionContext, group model.Group, userIDs []string, isOwner bool, syncToIdP bool) ([]IdPCall, error) {
	if !syncToIdP || !group.IsManaged || len(userIDs) == 0 {
		return nil, nil
	}
	var calls []IdPCall
	for _, uid := range userIDs {
		remaining, err := app.storage.FindActiveGrant(ctx, uid, group.ID, isOwner)
		if err != nil {
			return nil, err
		}
		if remaining == nil {
			calls = append(calls, IdPCall{GroupID: group.ID, UserID: uid, IsOwner: isOwner, Add: false})
		}
	}

	if group.IsRole() {
		roleAssocs, err := app.storage.FindRoleGroupMapsForRole(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		for _, assoc := range roleAssocs {
			assocGroup, err := app.storage.FindGroup(ctx, assoc.GroupID)
			if err != nil {
				return nil, err
			}
			if assocGroup == nil || !assocGroup.IsManaged {
				continue
			}
			for _, uid := range userIDs {
				remaining, err := app.storage.FindActiveGrant(ctx, uid, assoc.GroupID, isOwner)
				if err != nil {
					return nil, err
				}
				if remaining == nil {
					calls = append(calls, IdPCall{GroupID: assoc.GroupID, UserID: uid, IsOwner: isOwner, Add: false})
				}
			}
		}
	}
	return calls, nil
}

// markShouldExpire flips the UI hint bit on the active direct grants for the
// listed users; never affects correctness (§4.4.1 step 7).
func (app *Application) markShouldExpire(ctx storage.TransactionContext, groupID string, userIDs []string, isOwner bool) error {
	if len(userIDs) == 0 {
		return nil
	}
	grants, err := app.storage.FindActiveGrantsForGroup(ctx, groupID)
	if err != nil {
		return err
	}
	wanted := map[string]bool{}
	for _, id := range userIDs {
		wanted[id] = true
	}
	for _, g := range grants {
		if g.IsOwner != isOwner || !wanted[g.UserID] {
			continue
		}
		if err := app.storage.UpdateGrantShouldExpire(ctx, g.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// addDirectGrants inserts a new direct grant per user and schedules the
// corresponding IdP add call for managed groups.
func (app *Application) addDirectGrants(ctx storage.TransactionContext, group model.Group, userIDs []string, isOwner bool, endingAt *time.Time, actorID string, reason string, syncToIdP bool) ([]model.Grant, []IdPCall, error) {
	var grants []model.Grant
	var calls []IdPCall
	for _, uid := range userIDs {
		grant := model.Grant{
			ID:             uuid.NewString(),
			UserID:         uid,
			GroupID:        group.ID,
			IsOwner:        isOwner,
			CreatedReason:  reason,
			CreatedActorID: &actorID,
			CreatedAt:      time.Now(),
			EndedAt:        endingAt,
		}
		if err := app.storage.InsertGrant(ctx, grant); err != nil {
			return nil, nil, err
		}
		grants = append(grants, grant)
		if syncToIdP && group.IsManaged {
			calls = append(calls, IdPCall{GroupID: group.ID, UserID: uid, IsOwner: isOwner, Add: true})
		}
	}
	return grants, calls, nil
}

// fanOutRoleAttachToExistingGroups materializes a derived grant for each
// user added to a role, on every group the role is currently associated
// with (§4.4.1 step 8 / §4.4.2's attach logic).
func (app *Application) fanOutRoleAttachToExistingGroups(ctx storage.TransactionContext, roleGroupID string, userIDs []string, isOwner bool, clampedEndingAt *time.Time, actorID string, reason string, syncToIdP bool) ([]model.Grant, []IdPCall, error) {
	if len(userIDs) == 0 {
		return nil, nil, nil
	}
	assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, roleGroupID)
	if err != nil {
		return nil, nil, err
	}
	var grants []model.Grant
	var calls []IdPCall
	for _, assoc := range assocs {
		if assoc.IsOwner != isOwner {
			continue
		}
		targetGroup, err := app.storage.FindGroup(ctx, assoc.GroupID)
		if err != nil {
			return nil, nil, err
		}
		if targetGroup == nil {
			continue
		}
		for _, uid := range userIDs {
			endingAt := model.MinTime(assoc.EndedAt, clampedEndingAt)
			grant := model.Grant{
				ID:             uuid.NewString(),
				UserID:         uid,
				GroupID:        assoc.GroupID,
				IsOwner:        isOwner,
				RoleGroupMapID: &assoc.ID,
				CreatedReason:  reason,
				CreatedActorID: &actorID,
				CreatedAt:      time.Now(),
				EndedAt:        endingAt,
			}
			if err := app.storage.InsertGrant(ctx, grant); err != nil {
				return nil, nil, err
			}
			grants = append(grants, grant)
			if syncToIdP && targetGroup.IsManaged {
				calls = append(calls, IdPCall{GroupID: assoc.GroupID, UserID: uid, IsOwner: isOwner, Add: true})
			}
		}
	}
	return grants, calls, nil
}

// autoResolveAccessRequests transitions every pending AccessRequest matching
// a just-inserted grant to approved (§4.4.1 step 10).
func (app *Application) autoResolveAccessRequests(ctx storage.TransactionContext, grants []model.Grant, actorID string, reason string) ([]model.AccessRequest, error) {
	var resolved []model.AccessRequest
	now := time.Now()
	for _, grant := range grants {
		pending, err := app.storage.FindPendingAccessRequestsForGroup(ctx, grant.GroupID)
		if err != nil {
			return nil, err
		}
		for _, req := range pending {
			if req.RequesterID != grant.UserID || req.RequestOwnership != grant.IsOwner {
				continue
			}
			actor := actorID
			req.Resolve(model.RequestStatusApproved, now, &actor, reason)
			req.ApprovalEndingAt = grant.EndedAt
			grantID := grant.ID
			req.ApprovedGrantID = &grantID
			if err := app.storage.ResolveAccessRequest(ctx, req); err != nil {
				return nil, err
			}
			resolved = append(resolved, req)
		}
	}
	return resolved, nil
}

// dispatchIdPCalls awaits every scheduled IdP call concurrently after
// commit (§4.4.1 step 11). Failures are logged and swallowed - the
// reconciler is the convergence authority.
func (app *Application) dispatchIdPCalls(group model.Group, calls []IdPCall) {
	if len(calls) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, call := range calls {
		call := call
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.issueIdPCall(call); err != nil {
				app.log(fmt.Sprintf("idp call failed for group %s user %s: %v", call.GroupID, call.UserID, err))
			}
		}()
	}
	wg.Wait()
}

func (app *Application) issueIdPCall(call IdPCall) error {
	group, err := app.storage.FindGroup(nil, call.GroupID)
	if err != nil || group == nil {
		return err
	}
	if call.Add {
		if call.IsOwner {
			return app.idp.AddOwnerToGroup(group.ID, call.UserID)
		}
		return app.idp.AddUserToGroup(group.ID, call.UserID)
	}
	if call.IsOwner {
		return app.idp.RemoveOwnerFromGroup(group.ID, call.UserID)
	}
	return app.idp.RemoveUserFromGroup(group.ID, call.UserID)
}

// ModifyRoleGroupsInput carries the parameters of §4.4.2, the dual of
// ModifyGroupUsersInput: it attaches/detaches RoleGroupMap edges between a
// role and target groups instead of users and a single group.
type ModifyRoleGroupsInput struct {
	RoleGroupID         string
	GroupsAddedEndingAt *time.Time
	MemberLinksToAdd    []string
	OwnerLinksToAdd     []string
	MemberLinksToRemove []string
	OwnerLinksToRemove  []string
	CurrentActorID      string
	CreatedReason       string
}

func (in ModifyRoleGroupsInput) empty() bool {
	return len(in.MemberLinksToAdd) == 0 && len(in.OwnerLinksToAdd) == 0 &&
		len(in.MemberLinksToRemove) == 0 && len(in.OwnerLinksToRemove) == 0
}

// ModifyRoleGroups is §4.4.2: attach or detach RoleGroupMap edges, fanning
// the role's active members out to (or back in from) the target groups as
// derived grants. Time clamping uses each target group's own tags, not the
// role's (the one asymmetry called out against ModifyGroupUsers).
func (app *Application) ModifyRoleGroups(in ModifyRoleGroupsInput) (*model.Group, utils.Error) {
	now := time.Now()

	role, err := app.storage.FindGroup(nil, in.RoleGroupID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if role == nil || !role.IsRole() {
		return nil, utils.NewNotFoundError()
	}

	if in.empty() {
		return role, nil
	}

	policy, err := app.rolePolicy(nil, role.ID)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	var attachedGroupPolicies []coalescedPolicy
	for _, groupID := range unionIDs(in.MemberLinksToAdd, in.OwnerLinksToAdd) {
		target, err := app.storage.FindGroup(nil, groupID)
		if err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
		if target == nil || target.IsRole() || !target.IsManaged {
			return nil, utils.NewConflictError("target group must be a non-role managed group")
		}
		targetPolicy, err := app.groupPolicy(nil, target.ID)
		if err != nil {
			return nil, utils.NewStoreFailureError(err)
		}
		attachedGroupPolicies = append(attachedGroupPolicies, targetPolicy)
	}

	// No user ids are being added directly here - only group links - so the
	// member/owner self-add checks are inapplicable; only the role-transitive
	// check against attachedGroupPolicies applies.
	gate, err := app.selfAddGate(nil, *role, policy, in.CurrentActorID, nil, nil, attachedGroupPolicies)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if !gate.Valid {
		return role, utils.NewPolicyDeniedError(gate.Message)
	}
	gate, err = app.reasonGate(nil, policy, in.CurrentActorID, in.CreatedReason)
	if err != nil {
		return nil, utils.NewStoreFailureError(err)
	}
	if !gate.Valid {
		return role, utils.NewPolicyDeniedError(gate.Message)
	}

	var idpCalls []IdPCall

	endErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		toEndMember := unionIDs(in.MemberLinksToRemove, in.MemberLinksToAdd)
		toEndOwner := unionIDs(in.OwnerLinksToRemove, in.OwnerLinksToAdd)

		calls, err := app.detachRoleLinks(ctx, role.ID, toEndMember, false, in.CurrentActorID, now)
		if err != nil {
			return err
		}
		idpCalls = append(idpCalls, calls...)

		calls, err = app.detachRoleLinks(ctx, role.ID, toEndOwner, true, in.CurrentActorID, now)
		if err != nil {
			return err
		}
		idpCalls = append(idpCalls, calls...)
		return nil
	})
	if endErr != nil {
		return nil, utils.NewStoreFailureError(endErr)
	}

	var insertedGrants []model.Grant
	var newAssocs []model.RoleGroupMap

	addErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		assocs, grants, calls, err := app.attachRoleLinks(ctx, *role, in.MemberLinksToAdd, false, in.GroupsAddedEndingAt, in.CurrentActorID, in.CreatedReason, now)
		if err != nil {
			return err
		}
		newAssocs = append(newAssocs, assocs...)
		insertedGrants = append(insertedGrants, grants...)
		idpCalls = append(idpCalls, calls...)

		assocs, grants, calls, err = app.attachRoleLinks(ctx, *role, in.OwnerLinksToAdd, true, in.GroupsAddedEndingAt, in.CurrentActorID, in.CreatedReason, now)
		if err != nil {
			return err
		}
		newAssocs = append(newAssocs, assocs...)
		insertedGrants = append(insertedGrants, grants...)
		idpCalls = append(idpCalls, calls...)
		return nil
	})
	if addErr != nil {
		return nil, utils.NewStoreFailureError(addErr)
	}

	var resolvedAccess []model.AccessRequest
	var resolvedRole []model.RoleRequest
	resolveErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		resolved, err := app.autoResolveAccessRequests(ctx, insertedGrants, in.CurrentActorID, in.CreatedReason)
		if err != nil {
			return err
		}
		resolvedAccess = resolved

		for _, assoc := range newAssocs {
			pending, err := app.storage.FindPendingRoleRequest(ctx, role.ID, assoc.GroupID)
			if err != nil {
				return err
			}
			if pending == nil || pending.RequestOwnership != assoc.IsOwner {
				continue
			}
			actor := in.CurrentActorID
			pending.Resolve(model.RequestStatusApproved, now, &actor, in.CreatedReason)
			pending.ApprovalEndingAt = assoc.EndedAt
			if err := app.storage.ResolveRoleRequest(ctx, *pending); err != nil {
				return err
			}
			resolvedRole = append(resolvedRole, *pending)
		}
		return nil
	})
	if resolveErr != nil {
		return nil, utils.NewStoreFailureError(resolveErr)
	}

	app.dispatchIdPCalls(*role, idpCalls)

	for _, req := range resolvedAccess {
		if g, err := app.storage.FindGroup(nil, req.RequestedGroupID); err == nil && g != nil {
			app.notifications.AccessRequestCompleted(req, *g)
		}
	}
	for _, req := range resolvedRole {
		if g, err := app.storage.FindGroup(nil, req.RequestedGroupID); err == nil && g != nil {
			app.notifications.AccessRoleRequestCompleted(req, *g)
		}
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventRoleGroupsModify,
		Timestamp:  now.Unix(),
		ActorID:    &in.CurrentActorID,
		TargetType: "group",
		TargetID:   role.ID,
		Action:     "modify_role_groups",
		Reason:     &in.CreatedReason,
	})
	app.metrics.Increment("role_groups_modify", map[string]string{"role_group_id": role.ID})

	return role, nil
}

// detachRoleLinks ends the active RoleGroupMap for (role, groupID, isOwner)
// for each listed group, ends every grant carrying that mapping, and
// schedules IdP removals for any user left uncovered by another origin.
func (app *Application) detachRoleLinks(ctx storage.TransactionContext, roleGroupID string, groupIDs []string, isOwner bool, actorID string, now time.Time) ([]IdPCall, error) {
	var calls []IdPCall

	assocs, err := app.storage.FindRoleGroupMapsForRole(ctx, roleGroupID)
	if err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, id := range groupIDs {
		wanted[id] = true
	}

	for _, assoc := range assocs {
		if assoc.IsOwner != isOwner || !wanted[assoc.GroupID] || !assoc.IsActiveAt(now) {
			continue
		}
		if err := app.storage.EndRoleGroupMap(ctx, assoc.ID, now, &actorID); err != nil {
			return nil, err
		}

		grants, err := app.storage.FindActiveGrantsForGroup(ctx, assoc.GroupID)
		if err != nil {
			return nil, err
		}
		targetGroup, err := app.storage.FindGroup(ctx, assoc.GroupID)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			if g.RoleGroupMapID == nil || *g.RoleGroupMapID != assoc.ID {
				continue
			}
			if err := app.storage.EndGrant(ctx, g.ID, now, &actorID); err != nil {
				return nil, err
			}

			remaining, err := app.storage.FindActiveGrant(ctx, g.UserID, assoc.GroupID, isOwner)
			if err != nil {
				return nil, err
			}
			if remaining == nil && targetGroup != nil && targetGroup.IsManaged {
				calls = append(calls, IdPCall{GroupID: assoc.GroupID, UserID: g.UserID, IsOwner: isOwner, Add: false})
			}
		}
	}
	return calls, nil
}

// attachRoleLinks inserts one new RoleGroupMap per target group and one
// derived grant per active role member onto that group.
func (app *Application) attachRoleLinks(ctx storage.TransactionContext, role model.Group, groupIDs []string, isOwner bool, endingAt *time.Time, actorID string, reason string, now time.Time) ([]model.RoleGroupMap, []model.Grant, []IdPCall, error) {
	var assocs []model.RoleGroupMap
	var grants []model.Grant
	var calls []IdPCall

	activeMembers, err := app.storage.FindActiveGrantsForGroup(ctx, role.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, groupID := range groupIDs {
		targetGroup, err := app.storage.FindGroup(ctx, groupID)
		if err != nil {
			return nil, nil, nil, err
		}
		if targetGroup == nil {
			continue
		}
		targetPolicy, err := app.groupPolicy(ctx, groupID)
		if err != nil {
			return nil, nil, nil, err
		}
		limit := targetPolicy.MemberTimeLimit
		if isOwner {
			limit = targetPolicy.OwnerTimeLimit
		}
		assocEndingAt := clampEndingAt(endingAt, limit, targetGroup.IsManaged, now)

		assoc := model.RoleGroupMap{
			ID:             uuid.NewString(),
			RoleGroupID:    role.ID,
			GroupID:        groupID,
			IsOwner:        isOwner,
			CreatedActorID: &actorID,
			CreatedAt:      now,
			EndedAt:        assocEndingAt,
		}
		if err := app.storage.InsertRoleGroupMap(ctx, assoc); err != nil {
			return nil, nil, nil, err
		}
		assocs = append(assocs, assoc)

		for _, member := range activeMembers {
			if member.IsOwner {
				continue
			}
			grantEndingAt := model.MinTime(assoc.EndedAt, member.EndedAt)
			grant := model.Grant{
				ID:             uuid.NewString(),
				UserID:         member.UserID,
				GroupID:        groupID,
				IsOwner:        isOwner,
				RoleGroupMapID: &assoc.ID,
				CreatedReason:  reason,
				CreatedActorID: &actorID,
				CreatedAt:      now,
				EndedAt:        grantEndingAt,
			}
			if err := app.storage.InsertGrant(ctx, grant); err != nil {
				return nil, nil, nil, err
			}
			grants = append(grants, grant)
			if targetGroup.IsManaged {
				calls = append(calls, IdPCall{GroupID: groupID, UserID: member.UserID, IsOwner: isOwner, Add: true})
			}
		}
	}
	return assocs, grants, calls, nil
}
