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

package core

import (
	"testing"

	"accessgov/core/model"
)

// TestCreateAppAdoptedGroupTypeRetargetingIsANoOp documents a preserved
// behavior (open question, §9): when an additional app group adopts an
// existing IdP group, CreateApp calls ModifyGroupType against the new App's
// *owner* group id rather than the freshly adopted group's id. Both rows
// already carry GroupTypeApp, so ModifyGroupType's "already this type"
// short-circuit makes the call a no-op today - but it is targeting the
// wrong row, and would silently misbehave the moment ModifyGroupType grows
// a side effect that isn't gated on a type change. Left as observed rather
// than silently fixed.
func TestCreateAppAdoptedGroupTypeRetargetingIsANoOp(t *testing.T) {
	store := newFakeStorage()
	app := newTestApplication(store)

	createdApp, err := app.CreateApp(CreateAppInput{
		Name:           "Payroll",
		CurrentActorID: "actor-1",
		CreatedReason:  "test",
		AdditionalGroups: []AdditionalAppGroupInput{
			{
				Name:            "App-Payroll-Auditors",
				Description:     "auditors",
				AdoptIdPGroupID: "adopted-idp-group-1",
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	ownerGroup, findErr := store.FindGroupByName(nil, model.AppGroupPrefix(createdApp.Name)+"Owners")
	if findErr != nil || ownerGroup == nil {
		t.Fatalf("expected the app-owner group to exist, err=%v", findErr)
	}
	if ownerGroup.Type != model.GroupTypeApp {
		t.Errorf("expected the owner group's type to be left untouched by the mistargeted "+
			"ModifyGroupType call, got %s", ownerGroup.Type)
	}

	adopted, findErr := store.FindGroup(nil, "adopted-idp-group-1")
	if findErr != nil || adopted == nil {
		t.Fatalf("expected the adopted group to have been inserted under its IdP id, err=%v", findErr)
	}
	if adopted.Type != model.GroupTypeApp {
		t.Errorf("expected the adopted group to keep its App type, got %s", adopted.Type)
	}
}
