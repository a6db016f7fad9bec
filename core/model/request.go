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

import "time"

// RequestStatus is the state of an AccessRequest/RoleRequest/GroupRequest.
type RequestStatus string

// Terminal states are immutable once reached.
const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the status cannot transition further.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// resolution holds the fields that flip atomically with status on any
// pending -> {approved,rejected} transition. Embedded by every request kind.
type resolution struct {
	Status            RequestStatus `json:"status" bson:"status"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	ResolverID        *string       `json:"resolver_id,omitempty" bson:"resolver_id,omitempty"`
	ResolutionReason  string        `json:"resolution_reason,omitempty" bson:"resolution_reason,omitempty"`
}

// Resolve sets the resolution fields exactly once. Returns false if the
// request was already terminal (write-once invariant).
func (r *resolution) Resolve(status RequestStatus, at time.Time, resolverID *string, reason string) bool {
	if r.Status.IsTerminal() {
		return false
	}
	r.Status = status
	r.ResolvedAt = &at
	r.ResolverID = resolverID
	r.ResolutionReason = reason
	return true
}

// AccessRequest asks for membership or ownership of an existing group.
type AccessRequest struct {
	ID                 string     `json:"id" bson:"_id"`
	RequesterID        string     `json:"requester_id" bson:"requester_id"`
	RequestedGroupID   string     `json:"requested_group_id" bson:"requested_group_id"`
	RequestOwnership   bool       `json:"request_ownership" bson:"request_ownership"`
	RequestReason      string     `json:"request_reason" bson:"request_reason"`
	RequestEndingAt    *time.Time `json:"request_ending_at,omitempty" bson:"request_ending_at,omitempty"`
	resolution         `bson:",inline"`
	ApprovalEndingAt   *time.Time `json:"approval_ending_at,omitempty" bson:"approval_ending_at,omitempty"`
	ApprovedGrantID    *string    `json:"approved_membership_id,omitempty" bson:"approved_membership_id,omitempty"`
	DateCreated        time.Time  `json:"date_created" bson:"date_created"`
} //@name AccessRequest

// RoleRequest asks for a role's membership to be associated (as member-link
// or owner-link) with a target group.
type RoleRequest struct {
	ID               string     `json:"id" bson:"_id"`
	RequesterID      string     `json:"requester_id" bson:"requester_id"`
	RequesterRoleID  string     `json:"requester_role_id" bson:"requester_role_id"`
	RequestedGroupID string     `json:"requested_group_id" bson:"requested_group_id"`
	RequestOwnership bool       `json:"request_ownership" bson:"request_ownership"`
	RequestReason    string     `json:"request_reason" bson:"request_reason"`
	RequestEndingAt  *time.Time `json:"request_ending_at,omitempty" bson:"request_ending_at,omitempty"`
	resolution       `bson:",inline"`
	ApprovalEndingAt *time.Time `json:"approval_ending_at,omitempty" bson:"approval_ending_at,omitempty"`
	DateCreated      time.Time  `json:"date_created" bson:"date_created"`
} //@name RoleRequest

// GroupRequest asks to create a new group. It holds both the requested
// projection (what the requester asked for) and the resolved projection
// (what an approver may edit before creation).
type GroupRequest struct {
	ID              string    `json:"id" bson:"_id"`
	RequesterID     string    `json:"requester_id" bson:"requester_id"`
	RequestedType   GroupType `json:"requested_type" bson:"requested_type"`
	RequestedName   string    `json:"requested_name" bson:"requested_name"`
	RequestedAppID  *string   `json:"requested_app_id,omitempty" bson:"requested_app_id,omitempty"`
	RequestedReason string    `json:"requested_reason" bson:"requested_reason"`

	ResolvedName        string `json:"resolved_name,omitempty" bson:"resolved_name,omitempty"`
	ResolvedDescription string `json:"resolved_description,omitempty" bson:"resolved_description,omitempty"`

	resolution      `bson:",inline"`
	CreatedGroupID  *string   `json:"created_group_id,omitempty" bson:"created_group_id,omitempty"`
	DateCreated     time.Time `json:"date_created" bson:"date_created"`
} //@name GroupRequest

// GetStatus exposes the embedded resolution's status for callers outside the
// package that only hold an interface-shaped view.
func (r *AccessRequest) GetStatus() RequestStatus { return r.Status }

// GetStatus returns the RoleRequest's resolution status.
func (r *RoleRequest) GetStatus() RequestStatus { return r.Status }

// GetStatus returns the GroupRequest's resolution status.
func (r *GroupRequest) GetStatus() RequestStatus { return r.Status }
