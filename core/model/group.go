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

import (
	"strings"
	"time"
)

// GroupType discriminates the three group variants sharing the Group row.
type GroupType string

const (
	// GroupTypePlain is an ordinary group with no special semantics.
	GroupTypePlain GroupType = "plain"
	// GroupTypeRole is a RoleGroup: its members fan out derived grants onto
	// every group it is associated with via a RoleGroupMap.
	GroupTypeRole GroupType = "role"
	// GroupTypeApp is an AppGroup: owned by exactly one App.
	GroupTypeApp GroupType = "app"
)

// RolePrefix is the reserved name prefix for role groups.
const RolePrefix = "Role-"

// AppGroupPrefix builds the reserved name prefix for groups of an App.
func AppGroupPrefix(appName string) string {
	return "App-" + appName + "-"
}

// Group is the tagged-sum entity backing PlainGroup/RoleGroup/AppGroup.
//
// AppID/IsOwner are only meaningful when Type == GroupTypeApp.
type Group struct {
	ID          string  `json:"id" bson:"_id"`
	Type        GroupType `json:"type" bson:"type"`
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	IsManaged   bool    `json:"is_managed" bson:"is_managed"`

	// AppID/IsOwner apply only to AppGroup rows.
	AppID   *string `json:"app_id,omitempty" bson:"app_id,omitempty"`
	IsOwner bool    `json:"is_owner,omitempty" bson:"is_owner,omitempty"`

	DateCreated time.Time  `json:"date_created" bson:"date_created"`
	DateUpdated *time.Time `json:"date_updated" bson:"date_updated"`
	DeletedAt   *time.Time `json:"deleted_at" bson:"deleted_at"`
} //@name Group

// IsDeleted reports whether the group has been soft-deleted.
func (g *Group) IsDeleted() bool {
	return g != nil && g.DeletedAt != nil
}

// IsActive is the nil-safe negation of IsDeleted.
func (g *Group) IsActive() bool {
	return g != nil && g.DeletedAt == nil
}

// IsRole reports whether this row is a RoleGroup.
func (g *Group) IsRole() bool {
	return g != nil && g.Type == GroupTypeRole
}

// IsApp reports whether this row is an AppGroup.
func (g *Group) IsApp() bool {
	return g != nil && g.Type == GroupTypeApp
}

// IsAppOwnerGroup reports whether this AppGroup is its App's owner group.
func (g *Group) IsAppOwnerGroup() bool {
	return g != nil && g.Type == GroupTypeApp && g.IsOwner
}

// ValidateName checks a proposed name against the variant-specific prefix
// rule. It does not check uniqueness - that is an entity-store concern.
func ValidateName(t GroupType, name string, appName string) bool {
	switch t {
	case GroupTypeRole:
		return strings.HasPrefix(name, RolePrefix) && len(name) > len(RolePrefix)
	case GroupTypeApp:
		prefix := AppGroupPrefix(appName)
		return strings.HasPrefix(name, prefix) && len(name) > len(prefix)
	default:
		return !strings.HasPrefix(name, RolePrefix) && !strings.HasPrefix(name, "App-")
	}
}
