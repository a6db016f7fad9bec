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

// Package rest implements the HTTP handlers backing the driver/web router.
package rest

import (
	"net/http"
	"time"

	"accessgov/core"
	"accessgov/core/model"

	"github.com/gorilla/mux"
)

// ApisHandler serves the requester-facing client API: a user's own grants
// and requests, and the group/role mutation primitives gated by the engine's
// own policy checks (self-add/reason gates run inside core, not here).
type ApisHandler struct {
	app *core.Application
}

// NewApisHandler creates a new client API handler.
func NewApisHandler(app *core.Application) *ApisHandler {
	return &ApisHandler{app: app}
}

// Version returns the running build's version string.
func (h ApisHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.app.Version()})
}

// GetGroups lists groups, optionally filtered by type and/or owning app.
func (h ApisHandler) GetGroups(user *model.User, w http.ResponseWriter, r *http.Request) {
	var groupType *model.GroupType
	if raw := getStringQueryParam(r, "type"); raw != nil {
		t := model.GroupType(*raw)
		groupType = &t
	}
	appID := getStringQueryParam(r, "app_id")

	groups, err := h.app.GetGroups(groupType, appID)
	if err != nil {
		writeInternalError(w, "loading groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// GetGroup returns a single group by ID.
func (h ApisHandler) GetGroup(user *model.User, w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	group, err := h.app.GetGroup(id)
	if err != nil {
		writeInternalError(w, "loading group", err)
		return
	}
	if group == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// GetMyGrants returns every active grant the calling user currently holds.
func (h ApisHandler) GetMyGrants(user *model.User, w http.ResponseWriter, r *http.Request) {
	grants, err := h.app.GetUserGrants(user.ID)
	if err != nil {
		writeInternalError(w, "loading grants", err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

type modifyGroupUsersRequest struct {
	UsersAddedEndingAt  *time.Time `json:"users_added_ending_at"`
	MembersToAdd        []string   `json:"members_to_add"`
	OwnersToAdd         []string   `json:"owners_to_add"`
	MembersShouldExpire []string   `json:"members_should_expire"`
	OwnersShouldExpire  []string   `json:"owners_should_expire"`
	MembersToRemove     []string   `json:"members_to_remove"`
	OwnersToRemove      []string   `json:"owners_to_remove"`
	Reason              string     `json:"reason"`
	SyncToIdP           bool       `json:"sync_to_idp"`
	Notify              bool       `json:"notify"`
}

// ModifyGroupUsers adds/removes/expires members and owners of a plain or app
// group (§4.2, §4.3).
func (h ApisHandler) ModifyGroupUsers(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	var body modifyGroupUsersRequest
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	group, gerr := h.app.ModifyGroupUsers(core.ModifyGroupUsersInput{
		GroupID:             groupID,
		UsersAddedEndingAt:  body.UsersAddedEndingAt,
		MembersToAdd:        body.MembersToAdd,
		OwnersToAdd:         body.OwnersToAdd,
		MembersShouldExpire: body.MembersShouldExpire,
		OwnersShouldExpire:  body.OwnersShouldExpire,
		MembersToRemove:     body.MembersToRemove,
		OwnersToRemove:      body.OwnersToRemove,
		CurrentActorID:      user.ID,
		CreatedReason:       body.Reason,
		SyncToIdP:           body.SyncToIdP,
		Notify:              body.Notify,
	})
	if gerr != nil {
		writeGroupError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type modifyRoleGroupsRequest struct {
	GroupsAddedEndingAt *time.Time `json:"groups_added_ending_at"`
	MemberLinksToAdd    []string   `json:"member_links_to_add"`
	OwnerLinksToAdd     []string   `json:"owner_links_to_add"`
	MemberLinksToRemove []string   `json:"member_links_to_remove"`
	OwnerLinksToRemove  []string   `json:"owner_links_to_remove"`
	Reason              string     `json:"reason"`
}

// ModifyRoleGroups attaches/detaches groups to/from a RoleGroup, fanning out
// derived grants onto every existing member (§4.2).
func (h ApisHandler) ModifyRoleGroups(user *model.User, w http.ResponseWriter, r *http.Request) {
	roleGroupID := mux.Vars(r)["id"]
	var body modifyRoleGroupsRequest
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	group, gerr := h.app.ModifyRoleGroups(core.ModifyRoleGroupsInput{
		RoleGroupID:         roleGroupID,
		GroupsAddedEndingAt: body.GroupsAddedEndingAt,
		MemberLinksToAdd:    body.MemberLinksToAdd,
		OwnerLinksToAdd:     body.OwnerLinksToAdd,
		MemberLinksToRemove: body.MemberLinksToRemove,
		OwnerLinksToRemove:  body.OwnerLinksToRemove,
		CurrentActorID:      user.ID,
		CreatedReason:       body.Reason,
	})
	if gerr != nil {
		writeGroupError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type createAccessRequestBody struct {
	GroupID          string     `json:"group_id"`
	RequestOwnership bool       `json:"request_ownership"`
	Reason           string     `json:"reason"`
	RequestEndingAt  *time.Time `json:"request_ending_at"`
}

// CreateAccessRequest files a pending access request against a plain or app
// group, subject to the synchronous conditional-access hook (§4.5).
func (h ApisHandler) CreateAccessRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	var body createAccessRequestBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req, err := h.app.CreateAccessRequest(body.GroupID, user.ID, body.RequestOwnership, body.Reason, body.RequestEndingAt)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetMyAccessRequests returns the calling user's own open access requests.
func (h ApisHandler) GetMyAccessRequests(user *model.User, w http.ResponseWriter, r *http.Request) {
	requests, err := h.app.GetPendingAccessRequestsForUser(user.ID)
	if err != nil {
		writeInternalError(w, "loading access requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

type resolveRequestBody struct {
	Reason   string     `json:"reason"`
	EndingAt *time.Time `json:"ending_at"`
	Notify   bool       `json:"notify"`
}

// ApproveAccessRequest approves a pending access request, issuing the grant
// it describes.
func (h ApisHandler) ApproveAccessRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	var body resolveRequestBody
	_ = decodeBody(r, &body)

	req, err := h.app.ApproveAccessRequest(requestID, user.ID, body.Reason, body.EndingAt, body.Notify)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RejectAccessRequest rejects a pending access request.
func (h ApisHandler) RejectAccessRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	var body resolveRequestBody
	_ = decodeBody(r, &body)

	req, err := h.app.RejectAccessRequest(requestID, user.ID, body.Reason)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type createRoleRequestBody struct {
	RoleGroupID      string     `json:"role_group_id"`
	TargetGroupID    string     `json:"target_group_id"`
	RequestOwnership bool       `json:"request_ownership"`
	Reason           string     `json:"reason"`
	RequestEndingAt  *time.Time `json:"request_ending_at"`
}

// CreateRoleRequest files a pending request to attach a group to a role.
func (h ApisHandler) CreateRoleRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	var body createRoleRequestBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req, err := h.app.CreateRoleRequest(body.RoleGroupID, user.ID, body.TargetGroupID, body.RequestOwnership, body.Reason, body.RequestEndingAt)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetMyRoleRequests returns the calling user's own open role requests.
func (h ApisHandler) GetMyRoleRequests(user *model.User, w http.ResponseWriter, r *http.Request) {
	requests, err := h.app.GetPendingRoleRequestsForUser(user.ID)
	if err != nil {
		writeInternalError(w, "loading role requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// ApproveRoleRequest approves a pending role request, attaching the target
// group to the role and fanning out derived grants.
func (h ApisHandler) ApproveRoleRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	var body resolveRequestBody
	_ = decodeBody(r, &body)

	req, err := h.app.ApproveRoleRequest(requestID, user.ID, body.Reason, body.EndingAt)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RejectRoleRequest rejects a pending role request.
func (h ApisHandler) RejectRoleRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	var body resolveRequestBody
	_ = decodeBody(r, &body)

	req, err := h.app.RejectRoleRequest(requestID, user.ID, body.Reason)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type createGroupRequestBody struct {
	RequestedType model.GroupType `json:"requested_type"`
	RequestedName string          `json:"requested_name"`
	RequestedApp  *string         `json:"requested_app_id"`
	Reason        string          `json:"reason"`
}

// CreateGroupRequest files a pending request to create a new group or app.
func (h ApisHandler) CreateGroupRequest(user *model.User, w http.ResponseWriter, r *http.Request) {
	var body createGroupRequestBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req, err := h.app.CreateGroupRequest(user.ID, body.RequestedType, body.RequestedName, body.RequestedApp, body.Reason)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
