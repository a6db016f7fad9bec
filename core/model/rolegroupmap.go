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

// RoleGroupMap is the RoleGroup<->Group association edge. While active, it
// causes every active member of RoleGroupID to hold a derived Grant on
// GroupID (as a member-link, or as an owner-link when IsOwner is set).
//
// Roles cannot be associated with other roles - enforced at the engine
// boundary in core/engine, not here.
type RoleGroupMap struct {
	ID             string     `json:"id" bson:"_id"`
	RoleGroupID    string     `json:"role_group_id" bson:"role_group_id"`
	GroupID        string     `json:"group_id" bson:"group_id"`
	IsOwner        bool       `json:"is_owner" bson:"is_owner"`
	CreatedActorID *string    `json:"created_actor_id" bson:"created_actor_id"`
	EndedActorID   *string    `json:"ended_actor_id,omitempty" bson:"ended_actor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	EndedAt        *time.Time `json:"ended_at" bson:"ended_at"`
} //@name RoleGroupMap

// IsActiveAt reports whether the association is active at time t.
func (m *RoleGroupMap) IsActiveAt(t time.Time) bool {
	return m != nil && (m.EndedAt == nil || m.EndedAt.After(t))
}
