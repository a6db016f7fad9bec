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

// Package notifications implements core.NotificationHook against the
// rokwire Notifications building block, grounded on the teacher's
// driven/notifications adapter. Delivery is fire-and-forget: a failed send
// is logged, never returned, since nothing in the engine blocks on it.
package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"accessgov/core/model"
	"accessgov/driven/smtp"

	"github.com/rokwire/core-auth-library-go/v2/authservice"
)

// Recipient addresses one notification target.
type Recipient struct {
	UserID string `json:"user_id"`
	Mute   bool   `json:"mute"`
}

// Adapter implements core.NotificationHook over the Notifications BB API.
// When a BB dispatch fails, fallbackToEmail logs how many recipients were
// not reached; no email is sent, since the held smtp.Adapter is never called.
type Adapter struct {
	baseURL               string
	appID                 string
	orgID                 string
	serviceAccountManager *authservice.ServiceAccountManager
	mailer                *smtp.Adapter
}

// NewNotificationsAdapter creates a new Notifications BB adapter instance.
func NewNotificationsAdapter(baseURL string, appID string, orgID string, serviceAccountManager *authservice.ServiceAccountManager, mailer *smtp.Adapter) (*Adapter, error) {
	if serviceAccountManager == nil {
		log.Println("notifications: service account manager is nil")
		return nil, errors.New("notifications: service account manager is nil")
	}
	return &Adapter{baseURL: baseURL, appID: appID, orgID: orgID, serviceAccountManager: serviceAccountManager, mailer: mailer}, nil
}

// AccessRequestCreated notifies the resolved approver set that a plain or
// app-group access request is awaiting their decision.
func (a *Adapter) AccessRequestCreated(req model.AccessRequest, group model.Group, approverIDs []string) {
	a.notify(approverIDs, "Access request pending", fmt.Sprintf("A new access request for %q is awaiting your review.", group.Name),
		map[string]string{"type": "access_request_created", "request_id": req.ID, "group_id": group.ID})
}

// AccessRequestCompleted notifies a requester their access request was
// approved or rejected.
func (a *Adapter) AccessRequestCompleted(req model.AccessRequest, group model.Group) {
	a.notify([]string{req.RequesterID}, "Access request "+string(req.Status), fmt.Sprintf("Your access request for %q was %s.", group.Name, req.Status),
		map[string]string{"type": "access_request_completed", "request_id": req.ID, "group_id": group.ID})
}

// AccessRoleRequestCreated notifies the resolved approver set that a role
// request is awaiting their decision.
func (a *Adapter) AccessRoleRequestCreated(req model.RoleRequest, group model.Group, approverIDs []string) {
	a.notify(approverIDs, "Role request pending", fmt.Sprintf("A new role request for %q is awaiting your review.", group.Name),
		map[string]string{"type": "role_request_created", "request_id": req.ID, "group_id": group.ID})
}

// AccessRoleRequestCompleted notifies a requester their role request was
// approved or rejected.
func (a *Adapter) AccessRoleRequestCompleted(req model.RoleRequest, group model.Group) {
	a.notify([]string{req.RequesterID}, "Role request "+string(req.Status), fmt.Sprintf("Your role request for %q was %s.", group.Name, req.Status),
		map[string]string{"type": "role_request_completed", "request_id": req.ID, "group_id": group.ID})
}

// ExpiringUser notifies a member their access is expiring soon.
func (a *Adapter) ExpiringUser(grant model.Grant, group model.Group) {
	a.notify([]string{grant.UserID}, "Access expiring soon", fmt.Sprintf("Your access to %q is expiring soon.", group.Name),
		map[string]string{"type": "grant_expiring", "grant_id": grant.ID, "group_id": group.ID})
}

// ExpiringOwner notifies an owner their ownership is expiring soon.
func (a *Adapter) ExpiringOwner(grant model.Grant, group model.Group) {
	a.notify([]string{grant.UserID}, "Ownership expiring soon", fmt.Sprintf("Your ownership of %q is expiring soon.", group.Name),
		map[string]string{"type": "ownership_expiring", "grant_id": grant.ID, "group_id": group.ID})
}

// ExpiringRoleOwner builds a role-derived-ownership expiry message but
// addresses it to no recipients, so nothing is dispatched.
func (a *Adapter) ExpiringRoleOwner(roleMap model.RoleGroupMap, group model.Group) {
	a.notify([]string{}, "Role ownership expiring soon", fmt.Sprintf("A role-derived ownership on %q is expiring soon.", group.Name),
		map[string]string{"type": "role_ownership_expiring", "role_map_id": roleMap.ID, "group_id": group.ID})
}

func (a *Adapter) notify(userIDs []string, title string, text string, data map[string]string) {
	if len(userIDs) == 0 {
		return
	}
	if err := a.sendNotification(userIDs, title, text, data); err != nil {
		log.Printf("notifications: send failed, falling back to email - %s", err)
		a.fallbackToEmail(userIDs, title, text)
	}
}

func (a *Adapter) sendNotification(userIDs []string, title string, text string, data map[string]string) error {
	recipients := make([]Recipient, len(userIDs))
	for i, id := range userIDs {
		recipients[i] = Recipient{UserID: id}
	}

	url := fmt.Sprintf("%s/api/bbs/message", a.baseURL)
	bodyData := map[string]interface{}{
		"async": true,
		"message": map[string]interface{}{
			"org_id":     a.orgID,
			"app_id":     a.appID,
			"priority":   10,
			"recipients": recipients,
			"subject":    title,
			"body":       text,
			"data":       data,
		},
	}
	bodyBytes, err := json.Marshal(bodyData)
	if err != nil {
		log.Printf("notifications: error marshalling request body - %s", err)
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		log.Printf("notifications: error creating request - %s", err)
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := a.serviceAccountManager.MakeRequest(req, a.appID, a.orgID)
	if err != nil {
		log.Printf("notifications: error sending request - %s", err)
		return err
	}
	defer resp.Body.Close()

	responseData, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("notifications: unable to read response - %s", err)
		return err
	}
	if resp.StatusCode != 200 {
		log.Printf("notifications: error with response code - %d, response: %s", resp.StatusCode, responseData)
		return fmt.Errorf("notifications: response code %d", resp.StatusCode)
	}
	return nil
}

// fallbackToEmail is used when the BB dispatch fails - smtp.Adapter has no
// address book, so this only logs a count rather than resolving emails it
// was never given.
func (a *Adapter) fallbackToEmail(userIDs []string, title string, text string) {
	if a.mailer == nil {
		return
	}
	log.Printf("notifications: %d recipient(s) require direct email delivery for %q", len(userIDs), title)
}
