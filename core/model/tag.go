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

// ConstraintKey names a recognized tag constraint.
type ConstraintKey string

// Recognized constraint keys. See coalesceTags in core/tags.go for how values combine.
const (
	MemberTimeLimitConstraintKey         ConstraintKey = "member_time_limit"
	OwnerTimeLimitConstraintKey          ConstraintKey = "owner_time_limit"
	DisallowSelfAddMembershipConstraint  ConstraintKey = "disallow_self_add_membership"
	DisallowSelfAddOwnershipConstraint   ConstraintKey = "disallow_self_add_ownership"
	RequireReasonConstraintKey           ConstraintKey = "require_reason"
	OwnerCannotAddSelfConstraintKey      ConstraintKey = "owner_cannot_add_self"
)

// Tag carries a set of constraints that are coalesced across every tag
// attached to a group (directly, or via role association) to produce
// effective policy. See core/tags for the coalescing evaluator.
type Tag struct {
	ID          string                   `json:"id" bson:"_id"`
	Name        string                   `json:"name" bson:"name"`
	Description string                   `json:"description" bson:"description"`
	Enabled     bool                     `json:"enabled" bson:"enabled"`
	Constraints map[ConstraintKey]interface{} `json:"constraints" bson:"constraints"`
	DateCreated time.Time                `json:"date_created" bson:"date_created"`
	DateUpdated *time.Time               `json:"date_updated" bson:"date_updated"`
	DeletedAt   *time.Time               `json:"deleted_at" bson:"deleted_at"`
} //@name Tag

// IsDeleted reports whether the tag has been soft-deleted.
func (t *Tag) IsDeleted() bool {
	return t != nil && t.DeletedAt != nil
}

// IsActive reports whether the tag is enabled and not deleted.
func (t *Tag) IsActive() bool {
	return t != nil && t.Enabled && t.DeletedAt == nil
}

// IntConstraint returns a positive-int constraint value if set.
func (t *Tag) IntConstraint(key ConstraintKey) (int, bool) {
	if t == nil || t.Constraints == nil {
		return 0, false
	}
	raw, ok := t.Constraints[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, v > 0
	case int32:
		return int(v), v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	default:
		return 0, false
	}
}

// BoolConstraint returns a boolean constraint's value, defaulting to false.
func (t *Tag) BoolConstraint(key ConstraintKey) bool {
	if t == nil || t.Constraints == nil {
		return false
	}
	raw, ok := t.Constraints[key]
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

// GroupTagMap is the Tag<->Group edge. AppTagMapID is set when the tag was
// propagated onto the group because it is set on the group's owning App.
type GroupTagMap struct {
	ID          string     `json:"id" bson:"_id"`
	TagID       string     `json:"tag_id" bson:"tag_id"`
	GroupID     string     `json:"group_id" bson:"group_id"`
	AppTagMapID *string    `json:"app_tag_map_id,omitempty" bson:"app_tag_map_id,omitempty"`
	DateCreated time.Time  `json:"date_created" bson:"date_created"`
	EndedAt     *time.Time `json:"ended_at" bson:"ended_at"`
} //@name GroupTagMap

// IsActiveAt reports whether the edge is active at time t.
func (m *GroupTagMap) IsActiveAt(t time.Time) bool {
	return m != nil && (m.EndedAt == nil || m.EndedAt.After(t))
}

// AppTagMap is the Tag<->App edge; every active map auto-tags every group
// of the App via a propagated GroupTagMap.
type AppTagMap struct {
	ID          string     `json:"id" bson:"_id"`
	TagID       string     `json:"tag_id" bson:"tag_id"`
	AppID       string     `json:"app_id" bson:"app_id"`
	DateCreated time.Time  `json:"date_created" bson:"date_created"`
	EndedAt     *time.Time `json:"ended_at" bson:"ended_at"`
} //@name AppTagMap

// IsActiveAt reports whether the edge is active at time t.
func (m *AppTagMap) IsActiveAt(t time.Time) bool {
	return m != nil && (m.EndedAt == nil || m.EndedAt.After(t))
}
