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

	"github.com/gorilla/mux"
)

// InternalApisHandler serves the service-to-service surface, gated on the
// shared INTERNAL-API-KEY header rather than a user token: other building
// blocks resolve a user's grants without holding an identity of their own.
type InternalApisHandler struct {
	app *core.Application
}

// NewInternalApisHandler creates a new internal API handler.
func NewInternalApisHandler(app *core.Application) *InternalApisHandler {
	return &InternalApisHandler{app: app}
}

// IntGetUserGrants returns a user's active grants for a calling building
// block to resolve authorization decisions against.
func (h InternalApisHandler) IntGetUserGrants(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["identifier"]
	grants, err := h.app.GetUserGrants(userID)
	if err != nil {
		writeInternalError(w, "loading user grants", err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

// IntGetGroup returns a group by ID for a calling building block.
func (h InternalApisHandler) IntGetGroup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["identifier"]
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

// IntGetGroupGrants returns the active grants held against a group.
func (h InternalApisHandler) IntGetGroupGrants(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["identifier"]
	grants, err := h.app.GetGroupGrants(groupID)
	if err != nil {
		writeInternalError(w, "loading group grants", err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}
