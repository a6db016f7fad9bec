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

// Package idp implements core.IdPClient against a generic REST directory
// API, grounded on the teacher's driven/authman adapter - generalized from
// Authman's Grouper-flavored WsRest envelope to a plain users/groups/members
// surface.
package idp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"accessgov/core"
	"accessgov/core/model"
)

// Adapter implements core.IdPClient over HTTP basic auth, grounded on the
// teacher's driven/authman.Adapter.
type Adapter struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewIdPAdapter creates a new adapter for the configured directory API.
func NewIdPAdapter(baseURL string, username string, password string) *Adapter {
	return &Adapter{baseURL: baseURL, username: username, password: password, client: &http.Client{Timeout: 30 * time.Second}}
}

type idpUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type idpGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type idpGroupRule struct {
	GroupID string `json:"group_id"`
	Active  bool   `json:"active"`
}

type createGroupResponse struct {
	ID string `json:"id"`
}

func (a *Adapter) doRequest(method string, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			log.Printf("idp: error marshalling request body - %s", err)
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	url := fmt.Sprintf("%s%s", a.baseURL, path)
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		log.Printf("idp: error creating request for %s - %s", path, err)
		return nil, err
	}
	req.SetBasicAuth(a.username, a.password)
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		log.Printf("idp: error performing request for %s - %s", path, err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Printf("idp: error with response code for %s - %d", path, resp.StatusCode)
		return nil, fmt.Errorf("idp: %s returned status %d", path, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("idp: unable to read response body for %s - %s", path, err)
		return nil, err
	}
	return data, nil
}

// ListUsers retrieves the full directory user list.
func (a *Adapter) ListUsers() ([]model.User, error) {
	data, err := a.doRequest(http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}
	var users []idpUser
	if err := json.Unmarshal(data, &users); err != nil {
		log.Printf("idp: ListUsers: unable to parse json - %s", err)
		return nil, err
	}

	result := make([]model.User, len(users))
	for i, u := range users {
		result[i] = model.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, FirstName: u.FirstName, LastName: u.LastName}
	}
	return result, nil
}

// ListGroups retrieves the full directory group list.
func (a *Adapter) ListGroups() ([]core.IdPGroup, error) {
	data, err := a.doRequest(http.MethodGet, "/groups", nil)
	if err != nil {
		return nil, err
	}
	var groups []idpGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		log.Printf("idp: ListGroups: unable to parse json - %s", err)
		return nil, err
	}

	result := make([]core.IdPGroup, len(groups))
	for i, g := range groups {
		result[i] = core.IdPGroup{ID: g.ID, Name: g.Name, Description: g.Description}
	}
	return result, nil
}

// ListUsersForGroup retrieves a group's member ids.
func (a *Adapter) ListUsersForGroup(idpGroupID string) ([]string, error) {
	data, err := a.doRequest(http.MethodGet, fmt.Sprintf("/groups/%s/members", idpGroupID), nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Printf("idp: ListUsersForGroup: unable to parse json - %s", err)
		return nil, err
	}
	return ids, nil
}

// ListGroupsWithActiveRules retrieves the set of groups the IdP currently
// populates via an assignment rule, so the group-sync sweep knows which
// managed groups have become rule-owned.
func (a *Adapter) ListGroupsWithActiveRules() (map[string]bool, error) {
	data, err := a.doRequest(http.MethodGet, "/groups/rules", nil)
	if err != nil {
		return nil, err
	}
	var rules []idpGroupRule
	if err := json.Unmarshal(data, &rules); err != nil {
		log.Printf("idp: ListGroupsWithActiveRules: unable to parse json - %s", err)
		return nil, err
	}

	result := map[string]bool{}
	for _, r := range rules {
		if r.Active {
			result[r.GroupID] = true
		}
	}
	return result, nil
}

// CreateGroup creates a new directory group and returns its id.
func (a *Adapter) CreateGroup(name string, description string) (string, error) {
	data, err := a.doRequest(http.MethodPost, "/groups", idpGroup{Name: name, Description: description})
	if err != nil {
		return "", err
	}
	var created createGroupResponse
	if err := json.Unmarshal(data, &created); err != nil {
		log.Printf("idp: CreateGroup: unable to parse json - %s", err)
		return "", err
	}
	return created.ID, nil
}

// UpdateGroup updates a directory group's name and description.
func (a *Adapter) UpdateGroup(idpGroupID string, name string, description string) error {
	_, err := a.doRequest(http.MethodPut, fmt.Sprintf("/groups/%s", idpGroupID), idpGroup{Name: name, Description: description})
	return err
}

// DeleteGroup removes a directory group.
func (a *Adapter) DeleteGroup(idpGroupID string) error {
	_, err := a.doRequest(http.MethodDelete, fmt.Sprintf("/groups/%s", idpGroupID), nil)
	return err
}

// AddUserToGroup adds a member to a directory group. Idempotent: the IdP
// treats re-adding an existing member as success.
func (a *Adapter) AddUserToGroup(idpGroupID string, userID string) error {
	_, err := a.doRequest(http.MethodPut, fmt.Sprintf("/groups/%s/members/%s", idpGroupID, userID), nil)
	return err
}

// RemoveUserFromGroup removes a member from a directory group. Idempotent:
// removing an absent member is success.
func (a *Adapter) RemoveUserFromGroup(idpGroupID string, userID string) error {
	_, err := a.doRequest(http.MethodDelete, fmt.Sprintf("/groups/%s/members/%s", idpGroupID, userID), nil)
	return err
}

// AddOwnerToGroup adds an owner to a directory group.
func (a *Adapter) AddOwnerToGroup(idpGroupID string, userID string) error {
	_, err := a.doRequest(http.MethodPut, fmt.Sprintf("/groups/%s/owners/%s", idpGroupID, userID), nil)
	return err
}

// RemoveOwnerFromGroup removes an owner from a directory group.
func (a *Adapter) RemoveOwnerFromGroup(idpGroupID string, userID string) error {
	_, err := a.doRequest(http.MethodDelete, fmt.Sprintf("/groups/%s/owners/%s", idpGroupID, userID), nil)
	return err
}
