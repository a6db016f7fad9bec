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
	"time"

	"accessgov/core/model"
	"accessgov/driven/storage"

	"github.com/google/uuid"
)

// reconcilerActor identifies the reconciler as the actor of record on every
// mutation it performs directly (as opposed to one it merely drives through
// an existing request-lifecycle primitive).
const reconcilerActor = "reconciler"

func reconcilerActorID() *string {
	id := reconcilerActor
	return &id
}

// defaultSweepTimeoutMinutes bounds how long a sweep may hold its lock before
// a later tick is allowed to assume it died and start anyway.
const defaultSweepTimeoutMinutes = 30

// runSweep dispatches one scheduled tick to its sweep implementation, gated
// by sync_times so overlapping runs of the same kind never race (§4.6).
func (app *Application) runSweep(sweepType string) error {
	return app.withSweepLock(sweepType, func() error {
		switch sweepType {
		case model.ConfigTypeUserSync:
			return app.sweepUserSync()
		case model.ConfigTypeGroupSync:
			return app.sweepGroupSync()
		case model.ConfigTypeMembershipSync:
			return app.sweepMembershipSync()
		case model.ConfigTypeExpirySweep:
			return app.sweepExpirySweep()
		case model.ConfigTypeIntegrityRepair:
			return app.sweepIntegrityRepair()
		case model.ConfigTypeExpiryNotify:
			return app.sweepExpiryNotify()
		default:
			return fmt.Errorf("unknown sweep type %q", sweepType)
		}
	})
}

// withSweepLock records a start time for sweepType before running it and an
// end time after, refusing to start if a prior run of the same kind is still
// within its configured timeout - grounded on the teacher's
// synchronizeAuthman start/end sync_times guard, generalized from one
// Authman-wide lock to one lock per reconciler sweep kind.
func (app *Application) withSweepLock(sweepType string, run func() error) error {
	startTime := time.Now()

	config, err := app.storage.GetCachedSyncConfig(sweepType)
	if err != nil {
		return err
	}
	timeout := defaultSweepTimeoutMinutes
	if config != nil && config.Timeout > 0 {
		timeout = config.Timeout
	}

	lockErr := app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		times, err := app.storage.FindSyncTimes(ctx, sweepType)
		if err != nil {
			return err
		}
		if times != nil && times.StartTime != nil && times.EndTime == nil {
			if !startTime.After(times.StartTime.Add(time.Duration(timeout) * time.Minute)) {
				return fmt.Errorf("sweep %s already running", sweepType)
			}
		}
		return app.storage.SaveSyncTimes(ctx, model.SyncTimes{Key: sweepType, StartTime: &startTime, EndTime: nil})
	})
	if lockErr != nil {
		return lockErr
	}

	runErr := run()

	endTime := time.Now()
	if err := app.storage.SaveSyncTimes(nil, model.SyncTimes{Key: sweepType, StartTime: &startTime, EndTime: &endTime}); err != nil {
		app.log("sweep " + sweepType + ": error saving sync times: " + err.Error())
	}
	return runErr
}

// sweepUserSync pulls the authoritative user list from the IdP and creates,
// updates, or soft-deletes local rows to match. A soft-delete ends every
// active grant the user held and rejects every pending request they made.
func (app *Application) sweepUserSync() error {
	idpUsers, err := app.idp.ListUsers()
	if err != nil {
		return fmt.Errorf("listing idp users: %w", err)
	}
	idpByID := make(map[string]model.User, len(idpUsers))
	for _, u := range idpUsers {
		idpByID[u.ID] = u
	}

	localUsers, err := app.storage.FindAllUsers(nil)
	if err != nil {
		return err
	}
	localByID := make(map[string]model.User, len(localUsers))
	for _, u := range localUsers {
		localByID[u.ID] = u
	}

	now := time.Now()
	for _, local := range localUsers {
		if _, ok := idpByID[local.ID]; ok {
			continue
		}
		if err := app.softDeleteUser(local, now); err != nil {
			return err
		}
	}

	for _, idpUser := range idpUsers {
		if existing, ok := localByID[idpUser.ID]; ok {
			if existing.Email == idpUser.Email && existing.DisplayName == idpUser.DisplayName &&
				existing.FirstName == idpUser.FirstName && existing.LastName == idpUser.LastName {
				continue
			}
			idpUser.DateCreated = existing.DateCreated
			updated := now
			idpUser.DateUpdated = &updated
		} else {
			idpUser.DateCreated = now
		}
		if err := app.storage.SaveUser(nil, idpUser); err != nil {
			return err
		}
	}
	return nil
}

// softDeleteUser marks a user deleted and cascades the §4.6 consequence in
// one commit: every active grant ends, every pending request they made is
// rejected.
func (app *Application) softDeleteUser(user model.User, now time.Time) error {
	user.DeletedAt = &now
	return app.storage.PerformTransaction(func(ctx storage.TransactionContext) error {
		if err := app.storage.SaveUser(ctx, user); err != nil {
			return err
		}

		grants, err := app.storage.FindActiveGrantsForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if err := app.storage.EndGrant(ctx, g.ID, now, reconcilerActorID()); err != nil {
				return err
			}
		}

		pendingAccess, err := app.storage.FindPendingAccessRequestsForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, req := range pendingAccess {
			actor := reconcilerActor
			req.Resolve(model.RequestStatusRejected, now, &actor, "requester deactivated")
			if err := app.storage.ResolveAccessRequest(ctx, req); err != nil {
				return err
			}
		}

		pendingRole, err := app.storage.FindPendingRoleRequestsForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, req := range pendingRole {
			actor := reconcilerActor
			req.Resolve(model.RequestStatusRejected, now, &actor, "requester deactivated")
			if err := app.storage.ResolveRoleRequest(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}

// sweepGroupSync pulls the IdP's group list and reconciles name/description,
// soft-deletes managed groups the IdP no longer reports, and marks a managed
// group unmanaged once the IdP reports an active assignment rule for it -
// such a group is rule-populated externally and can no longer also be
// hand-managed here.
func (app *Application) sweepGroupSync() error {
	idpGroups, err := app.idp.ListGroups()
	if err != nil {
		return fmt.Errorf("listing idp groups: %w", err)
	}
	activeRules, err := app.idp.ListGroupsWithActiveRules()
	if err != nil {
		return fmt.Errorf("listing idp group rules: %w", err)
	}
	idpByID := make(map[string]IdPGroup, len(idpGroups))
	for _, g := range idpGroups {
		idpByID[g.ID] = g
	}

	localGroups, err := app.storage.FindGroups(nil, nil, nil)
	if err != nil {
		return err
	}
	now := time.Now()

	for _, group := range localGroups {
		if !group.IsManaged {
			continue
		}
		idpGroup, found := idpByID[group.ID]
		if !found {
			if delErr := app.deleteGroupInternal(group, reconcilerActor, "no longer present in idp"); delErr != nil {
				return fmt.Errorf("deleting group %s: %s", group.ID, delErr.GetMessage())
			}
			continue
		}

		changed := false
		if idpGroup.Name != "" && idpGroup.Name != group.Name {
			group.Name = idpGroup.Name
			changed = true
		}
		if idpGroup.Description != group.Description {
			group.Description = idpGroup.Description
			changed = true
		}
		if activeRules[group.ID] && group.IsManaged {
			group.IsManaged = false
			changed = true
		}
		if !changed {
			continue
		}
		updated := now
		group.DateUpdated = &updated
		if err := app.storage.UpdateGroup(nil, group); err != nil {
			return err
		}
	}
	return nil
}

// sweepMembershipSync diffs every managed group's member bucket against the
// IdP. Authoritatively, the local store wins and the IdP is pushed to match;
// otherwise the IdP wins and the local grants are rewritten to mirror it.
// Ownership has no IdP-side signal to diff against - the port exposes only
// member listing (§6) - so the owner bucket stays engine-authoritative and
// is left untouched here.
func (app *Application) sweepMembershipSync() error {
	groups, err := app.storage.FindGroups(nil, nil, nil)
	if err != nil {
		return err
	}
	now := time.Now()

	for _, group := range groups {
		if !group.IsManaged {
			continue
		}
		idpMemberIDs, err := app.idp.ListUsersForGroup(group.ID)
		if err != nil {
			app.log("membership sync: listing idp members for " + group.ID + ": " + err.Error())
			continue
		}
		idpSet := make(map[string]bool, len(idpMemberIDs))
		for _, id := range idpMemberIDs {
			idpSet[id] = true
		}

		grants, err := app.storage.FindActiveGrantsForGroup(nil, group.ID)
		if err != nil {
			return err
		}
		localSet := make(map[string]bool)
		for _, g := range grants {
			if !g.IsOwner {
				localSet[g.UserID] = true
			}
		}

		if app.config.MembershipSyncAuthoritative {
			for userID := range localSet {
				if idpSet[userID] {
					continue
				}
				if err := app.idp.AddUserToGroup(group.ID, userID); err != nil {
					app.log("membership sync: add " + userID + " to " + group.ID + ": " + err.Error())
				}
			}
			for userID := range idpSet {
				if localSet[userID] {
					continue
				}
				if err := app.idp.RemoveUserFromGroup(group.ID, userID); err != nil {
					app.log("membership sync: remove " + userID + " from " + group.ID + ": " + err.Error())
				}
			}
			continue
		}

		for _, g := range grants {
			if g.IsOwner || idpSet[g.UserID] {
				continue
			}
			if err := app.storage.EndGrant(nil, g.ID, now, reconcilerActorID()); err != nil {
				return err
			}
		}
		for userID := range idpSet {
			if localSet[userID] {
				continue
			}
			grant := model.Grant{
				ID:             uuid.NewString(),
				UserID:         userID,
				GroupID:        group.ID,
				IsOwner:        false,
				CreatedReason:  "reconciler membership sync",
				CreatedActorID: reconcilerActorID(),
				CreatedAt:      now,
			}
			if err := app.storage.InsertGrant(nil, grant); err != nil {
				return err
			}
		}
	}
	return nil
}

// sweepExpirySweep rejects every pending AccessRequest/RoleRequest whose
// request_ending_at has passed, or that has outlived the configured TTL.
func (app *Application) sweepExpirySweep() error {
	now := time.Now()

	pendingAccess, err := app.storage.FindPendingAccessRequests(nil)
	if err != nil {
		return err
	}
	for _, req := range pendingAccess {
		if !requestExpired(req.RequestEndingAt, req.DateCreated, app.config.AccessRequestTTL, now) {
			continue
		}
		if _, rejectErr := app.RejectAccessRequest(req.ID, reconcilerActor, "expired"); rejectErr != nil {
			app.log("expiry sweep: rejecting access request " + req.ID + ": " + rejectErr.GetMessage())
		}
	}

	pendingRole, err := app.storage.FindPendingRoleRequests(nil)
	if err != nil {
		return err
	}
	for _, req := range pendingRole {
		if !requestExpired(req.RequestEndingAt, req.DateCreated, app.config.AccessRequestTTL, now) {
			continue
		}
		if _, rejectErr := app.RejectRoleRequest(req.ID, reconcilerActor, "expired"); rejectErr != nil {
			app.log("expiry sweep: rejecting role request " + req.ID + ": " + rejectErr.GetMessage())
		}
	}
	return nil
}

func requestExpired(requestEndingAt *time.Time, createdAt time.Time, ttl time.Duration, now time.Time) bool {
	if requestEndingAt != nil && requestEndingAt.Before(now) {
		return true
	}
	return ttl > 0 && now.Sub(createdAt) > ttl
}

// sweepIntegrityRepair repairs the two drift kinds named in §4.6.5: unmanaged
// groups carrying derived access they cannot legitimately hold, and
// RoleGroupMap associations whose derived grants have fallen out of step
// with the role's live membership.
func (app *Application) sweepIntegrityRepair() error {
	if err := app.sweepIntegrityRepairUnmanaged(); err != nil {
		return err
	}
	if err := app.sweepIntegrityRepairRoleDrift(); err != nil {
		return err
	}
	app.audit.LogEvent(model.AuditEnvelope{
		ID:         uuid.NewString(),
		EventType:  model.EventReconcileRepair,
		Timestamp:  time.Now().Unix(),
		ActorID:    reconcilerActorID(),
		TargetType: "reconciler",
		TargetID:   "integrity_repair",
		Action:     "sweep",
	})
	return nil
}

// sweepIntegrityRepairUnmanaged ends every derived grant and role-association
// edge on an unmanaged group - unmanaged groups cannot be populated by roles
// - and rejects its pending requests.
func (app *Application) sweepIntegrityRepairUnmanaged() error {
	groups, err := app.storage.FindGroups(nil, nil, nil)
	if err != nil {
		return err
	}
	now := time.Now()

	for _, group := range groups {
		if group.IsManaged {
			continue
		}
		grants, err := app.storage.FindActiveGrantsForGroup(nil, group.ID)
		if err != nil {
			return err
		}
		for _, g := range grants {
			if !g.IsDerived() {
				continue
			}
			if err := app.storage.EndGrant(nil, g.ID, now, reconcilerActorID()); err != nil {
				return err
			}
		}

		incoming, err := app.storage.FindRoleGroupMapsForGroup(nil, group.ID)
		if err != nil {
			return err
		}
		for _, assoc := range incoming {
			if err := app.storage.EndRoleGroupMap(nil, assoc.ID, now, reconcilerActorID()); err != nil {
				return err
			}
		}

		pending, err := app.storage.FindPendingAccessRequestsForGroup(nil, group.ID)
		if err != nil {
			return err
		}
		for _, req := range pending {
			if _, rejectErr := app.RejectAccessRequest(req.ID, reconcilerActor, "group unmanaged"); rejectErr != nil {
				app.log("integrity repair: rejecting access request " + req.ID + ": " + rejectErr.GetMessage())
			}
		}
	}
	return nil
}

// sweepIntegrityRepairRoleDrift makes each active RoleGroupMap's derived
// grants on its target group equal the role's active member set: adds the
// missing rows, ends the extras.
func (app *Application) sweepIntegrityRepairRoleDrift() error {
	assocs, err := app.storage.FindActiveRoleGroupMaps(nil)
	if err != nil {
		return err
	}
	now := time.Now()

	for _, assoc := range assocs {
		members, err := app.storage.FindActiveGrantsForGroup(nil, assoc.RoleGroupID)
		if err != nil {
			return err
		}
		memberByUser := make(map[string]model.Grant, len(members))
		for _, m := range members {
			if m.IsOwner == assoc.IsOwner {
				memberByUser[m.UserID] = m
			}
		}

		derived, err := app.storage.FindActiveGrantsForGroup(nil, assoc.GroupID)
		if err != nil {
			return err
		}
		derivedByUser := make(map[string]model.Grant, len(derived))
		for _, d := range derived {
			if d.RoleGroupMapID != nil && *d.RoleGroupMapID == assoc.ID {
				derivedByUser[d.UserID] = d
			}
		}

		for userID, member := range memberByUser {
			if _, ok := derivedByUser[userID]; ok {
				continue
			}
			grant := model.Grant{
				ID:             uuid.NewString(),
				UserID:         userID,
				GroupID:        assoc.GroupID,
				IsOwner:        assoc.IsOwner,
				RoleGroupMapID: &assoc.ID,
				CreatedReason:  "reconciler integrity repair",
				CreatedActorID: reconcilerActorID(),
				CreatedAt:      now,
				EndedAt:        reconcileEndingAt(assoc.EndedAt, member.EndedAt),
			}
			if err := app.storage.InsertGrant(nil, grant); err != nil {
				return err
			}
		}

		for userID, extra := range derivedByUser {
			if _, ok := memberByUser[userID]; ok {
				continue
			}
			if err := app.storage.EndGrant(nil, extra.ID, now, reconcilerActorID()); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileEndingAt computes a repaired derived grant's ended_at.
//
// Deliberately preserved: unlike the live engine's model.MinTime (which
// treats a nil ended_at as +Inf, so a non-nil role-map end always wins over
// a null membership end), this treats a nil membership ended_at as the
// earliest possible value and returns nil immediately. When the
// role-membership's ended_at is null but the role-map's is not, this
// produces a nil (unbounded) ended_at where the live engine would have
// produced the role-map's end - the two converge only after the next time
// either side changes (open question, §9 - not a silent fix).
func reconcileEndingAt(roleMapEndedAt *time.Time, membershipEndedAt *time.Time) *time.Time {
	if membershipEndedAt == nil {
		return nil
	}
	if roleMapEndedAt == nil {
		return membershipEndedAt
	}
	if roleMapEndedAt.Before(*membershipEndedAt) {
		return roleMapEndedAt
	}
	return membershipEndedAt
}

// sweepExpiryNotify scans grants and role-owner associations expiring within
// the configured notification window and dispatches the matching
// per-user/per-owner/per-role-owner message.
func (app *Application) sweepExpiryNotify() error {
	if app.config.ExpirationNotifyWindow <= 0 {
		return nil
	}
	now := time.Now()
	windowEnd := now.Add(app.config.ExpirationNotifyWindow)

	grants, err := app.storage.FindGrantsEndingBetween(nil, now, windowEnd)
	if err != nil {
		return err
	}
	for _, g := range grants {
		group, err := app.storage.FindGroup(nil, g.GroupID)
		if err != nil || group == nil {
			continue
		}
		if g.IsOwner {
			app.notifications.ExpiringOwner(g, *group)
		} else {
			app.notifications.ExpiringUser(g, *group)
		}
	}

	assocs, err := app.storage.FindActiveRoleGroupMaps(nil)
	if err != nil {
		return err
	}
	for _, assoc := range assocs {
		if !assoc.IsOwner || assoc.EndedAt == nil {
			continue
		}
		if assoc.EndedAt.Before(now) || assoc.EndedAt.After(windowEnd) {
			continue
		}
		group, err := app.storage.FindGroup(nil, assoc.GroupID)
		if err != nil || group == nil {
			continue
		}
		app.notifications.ExpiringRoleOwner(assoc, *group)
	}
	return nil
}
