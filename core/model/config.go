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

// ApplicationConfig wraps in-memory startup configuration, grounded on the
// teacher's model.ApplicationConfig - generalized from a single Illinois
// tenant to the access-config override file described in spec.md §6.
type ApplicationConfig struct {
	NameValidationRegex              string
	NameValidationErrMessage         string
	DescriptionRequired              bool
	AccessRequestTTL                 time.Duration
	ExpirationNotifyWindow           time.Duration
	ConditionalAccessEnabled         bool
	ReservedRequireReasonSubstrings  []string
	ReasonTemplateVerbatimBlock      string

	// MembershipSyncAuthoritative selects the reconciler's membership-sync
	// direction: true pushes the local store's active grants out to the IdP
	// as the source of truth, false pulls the IdP's membership lists in to
	// overwrite the local mirror.
	MembershipSyncAuthoritative bool
}

// SyncConfig configures a reconciler cron job, grounded on the teacher's
// model.SyncConfig (type/CRON/timeout/threshold), generalized from Authman
// stems to the generic reconciler sweeps of spec.md §4.6.
type SyncConfig struct {
	Type          string `json:"type" bson:"type"`
	CRON          string `json:"cron" bson:"cron"`
	TimeThreshold int    `json:"time_threshold" bson:"time_threshold"`
	Timeout       int    `json:"timeout" bson:"timeout"`
}

// SyncTimes prevents concurrent reconciler runs of the same sweep kind.
type SyncTimes struct {
	Key       string     `json:"key" bson:"_id"`
	StartTime *time.Time `json:"start_time" bson:"start_time"`
	EndTime   *time.Time `json:"end_time" bson:"end_time"`
}

// Reconciler sweep kinds that carry a SyncConfig.
const (
	ConfigTypeUserSync        = "user_sync"
	ConfigTypeGroupSync       = "group_sync"
	ConfigTypeMembershipSync  = "membership_sync"
	ConfigTypeExpirySweep     = "expiry_sweep"
	ConfigTypeIntegrityRepair = "integrity_repair"
	ConfigTypeExpiryNotify    = "expiry_notify"
)
