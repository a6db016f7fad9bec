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

// User represents a directory user known to the governance store.
//
// Deletion is a soft timestamp: rows are never removed, only marked.
type User struct {
	ID          string     `json:"id" bson:"_id"`
	Email       string     `json:"email" bson:"email"`
	DisplayName string     `json:"display_name" bson:"display_name"`
	FirstName   string     `json:"first_name" bson:"first_name"`
	LastName    string     `json:"last_name" bson:"last_name"`
	ManagerID   *string    `json:"manager_id" bson:"manager_id"`
	DateCreated time.Time  `json:"date_created" bson:"date_created"`
	DateUpdated *time.Time `json:"date_updated" bson:"date_updated"`
	DeletedAt   *time.Time `json:"deleted_at" bson:"deleted_at"`
} //@name User

// IsDeleted reports whether the user has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u != nil && u.DeletedAt != nil
}

// IsActive reports the opposite of IsDeleted, nil-safe.
func (u *User) IsActive() bool {
	return u != nil && u.DeletedAt == nil
}
