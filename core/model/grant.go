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

// Grant is the user<->group membership/ownership edge (the spec's
// OktaUserGroupMember). If RoleGroupMapID is set, the grant is derived:
// it exists because a role containing the user is associated with the
// target group. Direct grants have a nil RoleGroupMapID.
type Grant struct {
	ID              string     `json:"id" bson:"_id"`
	UserID          string     `json:"user_id" bson:"user_id"`
	GroupID         string     `json:"group_id" bson:"group_id"`
	IsOwner         bool       `json:"is_owner" bson:"is_owner"`
	RoleGroupMapID  *string    `json:"role_group_map_id,omitempty" bson:"role_group_map_id,omitempty"`
	AccessRequestID *string    `json:"access_request_id,omitempty" bson:"access_request_id,omitempty"`
	ShouldExpire    bool       `json:"should_expire" bson:"should_expire"`
	CreatedReason   string     `json:"created_reason" bson:"created_reason"`
	CreatedActorID  *string    `json:"created_actor_id" bson:"created_actor_id"`
	EndedActorID    *string    `json:"ended_actor_id,omitempty" bson:"ended_actor_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	EndedAt         *time.Time `json:"ended_at" bson:"ended_at"`
} //@name Grant

// IsDirect reports whether this grant's origin is a direct add rather than
// role fan-out.
func (g *Grant) IsDirect() bool {
	return g != nil && g.RoleGroupMapID == nil
}

// IsDerived reports whether this grant exists because of role fan-out.
func (g *Grant) IsDerived() bool {
	return g != nil && g.RoleGroupMapID != nil
}

// IsActiveAt reports whether the grant is active at time t.
func (g *Grant) IsActiveAt(t time.Time) bool {
	return g != nil && (g.EndedAt == nil || g.EndedAt.After(t))
}

// Bucket identifies the (group, is_owner) grant-set a grant belongs to.
type Bucket struct {
	GroupID string
	IsOwner bool
}

// BucketOf returns the bucket this grant occupies.
func (g *Grant) BucketOf() Bucket {
	return Bucket{GroupID: g.GroupID, IsOwner: g.IsOwner}
}

// MinTime returns the earlier of two optional times, treating nil as +Inf.
func MinTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
