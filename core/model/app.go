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

// AccessAppName is the reserved app name for the system's own admin app.
// Its owner group is consulted for the access-admin policy bypass and it
// must never be deleted.
const AccessAppName = "Access"

// App owns one or more AppGroups, exactly one of which (IsOwner=true) is
// its app-owner group.
type App struct {
	ID          string     `json:"id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	DateCreated time.Time  `json:"date_created" bson:"date_created"`
	DateUpdated *time.Time `json:"date_updated" bson:"date_updated"`
	DeletedAt   *time.Time `json:"deleted_at" bson:"deleted_at"`
} //@name App

// IsDeleted reports whether the app has been soft-deleted.
func (a *App) IsDeleted() bool {
	return a != nil && a.DeletedAt != nil
}

// IsReservedAccessApp reports whether this is the reserved "Access" app.
func (a *App) IsReservedAccessApp() bool {
	return a != nil && a.Name == AccessAppName
}
