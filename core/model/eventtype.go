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

package model

// EventType enumerates the audit-event families emitted after commit, one
// per mutation kind the grant engine and request lifecycle perform.
type EventType string

// Event type catalog.
const (
	EventGroupModifyUsers     EventType = "group_modify_users"
	EventGroupCreate          EventType = "group_create"
	EventGroupDelete          EventType = "group_delete"
	EventGroupTypeChange      EventType = "group_type_change"
	EventGroupUnmanage        EventType = "group_unmanage"
	EventRoleGroupsModify     EventType = "role_groups_modify"
	EventAppCreate            EventType = "app_create"
	EventAppDelete            EventType = "app_delete"
	EventTagCreate            EventType = "tag_create"
	EventTagDelete            EventType = "tag_delete"
	EventGroupTagsModify      EventType = "group_tags_modify"
	EventAppTagsModify        EventType = "app_tags_modify"
	EventAccessRequestCreate  EventType = "access_request_create"
	EventAccessRequestComplete EventType = "access_request_complete"
	EventRoleRequestCreate    EventType = "role_request_create"
	EventRoleRequestComplete  EventType = "role_request_complete"
	EventGroupRequestCreate   EventType = "group_request_create"
	EventGroupRequestComplete EventType = "group_request_complete"
	EventReconcileRepair      EventType = "reconcile_integrity_repair"
)

// AuditEnvelope is the payload passed to the audit-event hook after every
// commit for the event families above.
type AuditEnvelope struct {
	ID          string                 `json:"id"`
	EventType   EventType              `json:"event_type"`
	Timestamp   int64                  `json:"timestamp"`
	ActorID     *string                `json:"actor_id"`
	ActorEmail  *string                `json:"actor_email,omitempty"`
	TargetType  string                 `json:"target_type"`
	TargetID    string                 `json:"target_id"`
	TargetName  *string                `json:"target_name,omitempty"`
	Action      string                 `json:"action"`
	Reason      *string                `json:"reason,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
	Metadata    map[string]interface{} `json:"metadata"`
} //@name AuditEnvelope
