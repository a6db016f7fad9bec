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

// Package conditionalaccess implements core.ConditionalAccessHook against an
// external policy engine, grounded on the teacher's driven/corebb adapter -
// generalized from Core BB account lookups to a synchronous request/response
// access-decision call gated behind the same ServiceAccountManager transport.
package conditionalaccess

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"accessgov/core"
	"accessgov/core/model"

	"github.com/rokwire/core-auth-library-go/v2/authservice"
)

// Adapter implements core.ConditionalAccessHook over the configured policy
// engine's evaluate endpoint.
type Adapter struct {
	baseURL               string
	serviceAccountManager *authservice.ServiceAccountManager
}

// NewConditionalAccessAdapter creates a new adapter for the policy engine.
func NewConditionalAccessAdapter(baseURL string, serviceAccountManager *authservice.ServiceAccountManager) *Adapter {
	return &Adapter{baseURL: baseURL, serviceAccountManager: serviceAccountManager}
}

type decisionResponse struct {
	Decided  bool       `json:"decided"`
	Approved bool       `json:"approved"`
	Reason   string     `json:"reason"`
	EndingAt *time.Time `json:"ending_at,omitempty"`
}

// EvaluateAccessRequest asks the policy engine to approve, reject, or defer
// a plain/app-group access request before it becomes pending. A transport
// failure is treated as "not decided" so the caller falls through to the
// normal approval lifecycle rather than blocking on the hook.
func (a *Adapter) EvaluateAccessRequest(req model.AccessRequest, group model.Group, tags []model.Tag, requester model.User) core.ConditionalAccessDecision {
	decision, err := a.evaluate("access_request", map[string]interface{}{
		"request":   req,
		"group":     group,
		"tags":      tags,
		"requester": requester,
	})
	if err != nil {
		log.Printf("conditionalaccess: EvaluateAccessRequest: %s", err)
		return core.ConditionalAccessDecision{}
	}
	return decision
}

// EvaluateRoleRequest asks the policy engine to approve, reject, or defer a
// role request before it becomes pending.
func (a *Adapter) EvaluateRoleRequest(req model.RoleRequest, group model.Group, tags []model.Tag, requester model.User) core.ConditionalAccessDecision {
	decision, err := a.evaluate("role_request", map[string]interface{}{
		"request":   req,
		"group":     group,
		"tags":      tags,
		"requester": requester,
	})
	if err != nil {
		log.Printf("conditionalaccess: EvaluateRoleRequest: %s", err)
		return core.ConditionalAccessDecision{}
	}
	return decision
}

func (a *Adapter) evaluate(kind string, payload map[string]interface{}) (core.ConditionalAccessDecision, error) {
	if a.serviceAccountManager == nil {
		return core.ConditionalAccessDecision{}, errors.New("service account manager is nil")
	}

	url := fmt.Sprintf("%s/bbs/conditional-access/evaluate", a.baseURL)
	body := map[string]interface{}{"type": kind, "data": payload}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return core.ConditionalAccessDecision{}, err
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return core.ConditionalAccessDecision{}, err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := a.serviceAccountManager.MakeRequest(req, "all", "all")
	if err != nil {
		return core.ConditionalAccessDecision{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return core.ConditionalAccessDecision{}, fmt.Errorf("evaluate: response code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ConditionalAccessDecision{}, err
	}

	var decision decisionResponse
	if err := json.Unmarshal(data, &decision); err != nil {
		return core.ConditionalAccessDecision{}, err
	}
	return core.ConditionalAccessDecision{Decided: decision.Decided, Approved: decision.Approved, Reason: decision.Reason, EndingAt: decision.EndingAt}, nil
}
