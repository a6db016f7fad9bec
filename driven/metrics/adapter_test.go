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

package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIncrementEmptyNameIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	a := NewMetricsAdapter(server.URL, "key-1")
	a.Increment("", map[string]string{"x": "y"})

	if called {
		t.Error("expected an empty counter name to never reach the transport")
	}
}

func TestIncrementPostsNamedCounterWithAPIKeyHeader(t *testing.T) {
	var gotBody incrementCounterBody
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("INTERNAL-API-KEY")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %s", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := NewMetricsAdapter(server.URL, "secret-key")
	a.Increment("grant_created", map[string]string{"group_type": "plain"})

	if gotKey != "secret-key" {
		t.Errorf("expected the internal API key header to be forwarded, got %q", gotKey)
	}
	if gotBody.Name != "grant_created" {
		t.Errorf("expected counter name %q, got %q", "grant_created", gotBody.Name)
	}
	if gotBody.Tags["group_type"] != "plain" {
		t.Errorf("expected tag group_type=plain, got %v", gotBody.Tags)
	}
}

func TestIncrementNonOKStatusDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	a := NewMetricsAdapter(server.URL, "key-1")
	a.Increment("grant_created", nil)
}
