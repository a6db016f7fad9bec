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

// Package metrics implements core.MetricsHook against an internal counters
// API, grounded on the teacher's driven/rewards adapter - generalized from
// one reward-history POST per user action to one named counter increment
// per engine operation.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// Adapter implements core.MetricsHook over an internal-API-key-authenticated
// counters endpoint.
type Adapter struct {
	internalAPIKey string
	metricsHost    string
	client         *http.Client
}

// NewMetricsAdapter creates a new metrics adapter.
func NewMetricsAdapter(host string, internalAPIKey string) *Adapter {
	if host == "" {
		log.Fatal("metrics: NewMetricsAdapter - not initialized")
		return nil
	}
	return &Adapter{metricsHost: host, internalAPIKey: internalAPIKey, client: &http.Client{}}
}

type incrementCounterBody struct {
	Name string            `json:"name"`
	Tags map[string]string `json:"tags"`
}

// Increment emits a named counter with the given tag set. Fire-and-forget:
// a delivery failure is logged, never returned, since nothing in the engine
// blocks on metrics delivery.
func (a *Adapter) Increment(name string, tags map[string]string) {
	if name == "" {
		return
	}

	reqBody, err := json.Marshal(incrementCounterBody{Name: name, Tags: tags})
	if err != nil {
		log.Printf("metrics: Increment: marshal request body - %s", err)
		return
	}

	url := fmt.Sprintf("%s/api/int/counters", a.metricsHost)
	req, err := http.NewRequest("POST", url, strings.NewReader(string(reqBody)))
	if err != nil {
		log.Printf("metrics: Increment: error creating request - %s", err)
		return
	}
	req.Header.Add("INTERNAL-API-KEY", a.internalAPIKey)
	req.Header.Add("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		log.Printf("metrics: Increment: error sending request - %s", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		errorBody, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Printf("metrics: Increment: unable to read response body - %s", err)
			return
		}
		log.Printf("metrics: Increment: error with response code - %d body: %s", resp.StatusCode, errorBody)
	}
}
