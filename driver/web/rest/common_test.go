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

package rest

import (
	"net/http/httptest"
	"strings"
	"testing"

	"accessgov/utils"
)

func TestWriteJSONEncodesBodyAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, 201, map[string]string{"a": "b"})

	if w.Code != 201 {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected application/json content type, got %q", got)
	}
	if !strings.Contains(w.Body.String(), `"a":"b"`) {
		t.Errorf("expected the encoded body to contain the given map, got %q", w.Body.String())
	}
}

func TestWriteJSONNilDataWritesNoBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, 204, nil)

	if w.Body.Len() != 0 {
		t.Errorf("expected no body for nil data, got %q", w.Body.String())
	}
}

func TestWriteGroupErrorUsesErrorsOwnStatusCode(t *testing.T) {
	w := httptest.NewRecorder()
	writeGroupError(w, utils.NewNotFoundError())

	if w.Code != 404 {
		t.Errorf("expected 404 for a not-found error, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected a JSON error body to be written")
	}
}

func TestDecodeBodyRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	var out map[string]string
	if err := decodeBody(req, &out); err == nil {
		t.Error("expected malformed JSON to produce an error")
	}
}

func TestGetStringQueryParamMissingReturnsNil(t *testing.T) {
	req := httptest.NewRequest("GET", "/?a=b", nil)
	if got := getStringQueryParam(req, "missing"); got != nil {
		t.Errorf("expected nil for a missing param, got %q", *got)
	}
}

func TestGetStringQueryParamEmptyValueReturnsNil(t *testing.T) {
	req := httptest.NewRequest("GET", "/?a=", nil)
	if got := getStringQueryParam(req, "a"); got != nil {
		t.Errorf("expected nil for an empty param value, got %q", *got)
	}
}

func TestGetStringQueryParamPresent(t *testing.T) {
	req := httptest.NewRequest("GET", "/?a=b", nil)
	got := getStringQueryParam(req, "a")
	if got == nil || *got != "b" {
		t.Errorf("expected %q, got %v", "b", got)
	}
}
