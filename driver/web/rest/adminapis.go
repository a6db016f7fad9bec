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

package rest

import (
	"net/http"

	"accessgov/core"
	"accessgov/core/model"

	"github.com/gorilla/mux"
)

// AdminApisHandler serves the administrative surface: app/group lifecycle,
// tag management, and reconciliation sync-config inspection. Every call is
// additionally gated by the casbin admin enforcer at the router level.
type AdminApisHandler struct {
	app *core.Application
}

// NewAdminApisHandler creates a new admin API handler.
func NewAdminApisHandler(app *core.Application) *AdminApisHandler {
	return &AdminApisHandler{app: app}
}

type createAppBody struct {
	Name             string                        `json:"name"`
	Description      string                        `json:"description"`
	InitialOwnerIDs  []string                      `json:"initial_owner_ids"`
	InitialTagIDs    []string                      `json:"initial_tag_ids"`
	AdditionalGroups []core.AdditionalAppGroupInput `json:"additional_groups"`
	Reason           string                        `json:"reason"`
}

// CreateApp creates a new App, its reserved owner AppGroup, and any
// additional AppGroups requested alongside it (§4.1).
func (h AdminApisHandler) CreateApp(user *model.User, w http.ResponseWriter, r *http.Request) {
	var body createAppBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	app, err := h.app.CreateApp(core.CreateAppInput{
		Name:             body.Name,
		Description:      body.Description,
		InitialOwnerIDs:  body.InitialOwnerIDs,
		InitialTagIDs:    body.InitialTagIDs,
		AdditionalGroups: body.AdditionalGroups,
		CurrentActorID:   user.ID,
		CreatedReason:    body.Reason,
	})
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// GetApps lists every app.
func (h AdminApisHandler) GetApps(user *model.User, w http.ResponseWriter, r *http.Request) {
	apps, err := h.app.GetApps()
	if err != nil {
		writeInternalError(w, "loading apps", err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// DeleteApp deletes an app and every group it owns.
func (h AdminApisHandler) DeleteApp(user *model.User, w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["id"]
	reason := getStringQueryParam(r, "reason")
	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	if err := h.app.DeleteApp(appID, user.ID, reasonText); err != nil {
		writeGroupError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createGroupBody struct {
	Type            model.GroupType `json:"type"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	AppID           *string         `json:"app_id"`
	IsAppOwnerGroup bool            `json:"is_app_owner_group"`
	Unmanaged       bool            `json:"unmanaged"`
	AdoptIdPGroupID string          `json:"adopt_idp_group_id"`
	InitialTagIDs   []string        `json:"initial_tag_ids"`
	Reason          string          `json:"reason"`
}

// CreateGroup creates a plain, role, or app group (§4.1).
func (h AdminApisHandler) CreateGroup(user *model.User, w http.ResponseWriter, r *http.Request) {
	var body createGroupBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	group, err := h.app.CreateGroup(core.CreateGroupInput{
		Type:            body.Type,
		Name:            body.Name,
		Description:     body.Description,
		AppID:           body.AppID,
		IsAppOwnerGroup: body.IsAppOwnerGroup,
		Unmanaged:       body.Unmanaged,
		AdoptIdPGroupID: body.AdoptIdPGroupID,
		InitialTagIDs:   body.InitialTagIDs,
		CurrentActorID:  user.ID,
		CreatedReason:   body.Reason,
	})
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// DeleteGroup deletes a group, ending every grant and role-link it holds.
func (h AdminApisHandler) DeleteGroup(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	reason := getStringQueryParam(r, "reason")
	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	if err := h.app.DeleteGroup(groupID, user.ID, reasonText); err != nil {
		writeGroupError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type modifyGroupTypeBody struct {
	NewType model.GroupType `json:"new_type"`
	Reason  string          `json:"reason"`
}

// ModifyGroupType reclassifies a group between plain/role/app (§4.1).
func (h AdminApisHandler) ModifyGroupType(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	var body modifyGroupTypeBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	group, err := h.app.ModifyGroupType(groupID, body.NewType, user.ID, body.Reason)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// UnmanageGroup flips a managed group to unmanaged, detaching it from IdP
// rule-derived membership control (§4.4).
func (h AdminApisHandler) UnmanageGroup(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	reason := getStringQueryParam(r, "reason")
	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	group, err := h.app.UnmanageGroup(groupID, user.ID, reasonText)
	if err != nil {
		writeGroupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type modifyTagsBody struct {
	TagIDsToAdd    []string `json:"tag_ids_to_add"`
	TagIDsToRemove []string `json:"tag_ids_to_remove"`
	Reason         string   `json:"reason"`
}

// ModifyGroupTags adds/removes tags on a group (§4.4).
func (h AdminApisHandler) ModifyGroupTags(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	var body modifyTagsBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.app.ModifyGroupTags(groupID, body.TagIDsToAdd, body.TagIDsToRemove, user.ID, body.Reason); err != nil {
		writeGroupError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ModifyAppTags adds/removes tags on an app, propagating onto its groups (§4.4).
func (h AdminApisHandler) ModifyAppTags(user *model.User, w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["id"]
	var body modifyTagsBody
	if err := decodeBody(r, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.app.ModifyAppTags(appID, body.TagIDsToAdd, body.TagIDsToRemove, user.ID, body.Reason); err != nil {
		writeGroupError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetSyncConfigs returns the reconciliation sweep schedule/config rows.
func (h AdminApisHandler) GetSyncConfigs(user *model.User, w http.ResponseWriter, r *http.Request) {
	configs, err := h.app.GetSyncConfigs()
	if err != nil {
		writeInternalError(w, "loading sync configs", err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// GetPendingAccessRequests returns the pending access requests awaiting an
// approver's decision for a given group.
func (h AdminApisHandler) GetPendingAccessRequests(user *model.User, w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	requests, err := h.app.GetPendingAccessRequestsForGroup(groupID)
	if err != nil {
		writeInternalError(w, "loading pending access requests", err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}
