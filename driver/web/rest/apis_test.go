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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"accessgov/core"
	"accessgov/core/model"
)

func TestVersionReturnsConfiguredVersionString(t *testing.T) {
	app := core.NewApplication("1.2.3", "build-1", nil, nil, nil, nil, nil, nil, model.ApplicationConfig{}, nil)
	h := NewApisHandler(app)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	h.Version(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %s", err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", body["version"])
	}
}

func TestModifyGroupUsersRejectsMalformedBody(t *testing.T) {
	app := core.NewApplication("1.0", "build-1", nil, nil, nil, nil, nil, nil, model.ApplicationConfig{}, nil)
	h := NewApisHandler(app)

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/users", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.ModifyGroupUsers(&model.User{ID: "u1"}, w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestCreateAccessRequestRejectsMalformedBody(t *testing.T) {
	app := core.NewApplication("1.0", "build-1", nil, nil, nil, nil, nil, nil, model.ApplicationConfig{}, nil)
	h := NewApisHandler(app)

	req := httptest.NewRequest(http.MethodPost, "/access-requests", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.CreateAccessRequest(&model.User{ID: "u1"}, w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}
