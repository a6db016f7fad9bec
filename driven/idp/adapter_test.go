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

package idp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewIdPAdapter(server.URL, "user", "pass"), server
}

func TestListUsersParsesDirectoryResponse(t *testing.T) {
	a, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/users" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "user" || p != "pass" {
			t.Error("expected basic auth credentials to be set")
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "u1", "email": "u1@example.com", "display_name": "U One"},
		})
	})

	users, err := a.ListUsers()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(users) != 1 || users[0].ID != "u1" || users[0].Email != "u1@example.com" {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestListGroupsWithActiveRulesFiltersInactive(t *testing.T) {
	a, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"group_id": "g1", "active": true},
			{"group_id": "g2", "active": false},
		})
	})

	rules, err := a.ListGroupsWithActiveRules()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !rules["g1"] || rules["g2"] {
		t.Errorf("expected only g1 to be marked rule-active, got %v", rules)
	}
}

func TestCreateGroupReturnsCreatedID(t *testing.T) {
	a, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/groups" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body idpGroup
		json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "New Group" {
			t.Errorf("expected the group name to be forwarded, got %q", body.Name)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "new-id"})
	})

	id, err := a.CreateGroup("New Group", "description")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if id != "new-id" {
		t.Errorf("expected the created id to be returned, got %q", id)
	}
}

func TestAddUserToGroupTreatsNoContentAsSuccess(t *testing.T) {
	a, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/groups/g1/members/u1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := a.AddUserToGroup("g1", "u1"); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestRemoveOwnerFromGroupPropagatesNonOKStatus(t *testing.T) {
	a, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	if err := a.RemoveOwnerFromGroup("g1", "u1"); err == nil {
		t.Error("expected a non-OK status to surface as an error")
	}
}
