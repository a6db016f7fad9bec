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

// Package audit implements core.AuditHook against an external audit-log
// sink, grounded on the teacher's driven/socialbb adapter - generalized from
// its single legacy-proxy operation dispatch to one envelope POST per commit.
package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"accessgov/core/model"

	"github.com/rokwire/core-auth-library-go/v2/authservice"
	"github.com/rokwire/logging-library-go/v2/logs"
)

// Adapter implements core.AuditHook by posting each envelope to the
// configured audit-log sink.
type Adapter struct {
	auditURL              string
	serviceAccountManager *authservice.ServiceAccountManager
	logger                *logs.Logger
}

// NewAuditAdapter creates a new adapter for the audit-log sink.
func NewAuditAdapter(auditURL string, serviceAccountManager *authservice.ServiceAccountManager, logger *logs.Logger) *Adapter {
	return &Adapter{auditURL: auditURL, serviceAccountManager: serviceAccountManager, logger: logger}
}

// LogEvent posts one audit envelope. Fire-and-forget: a delivery failure is
// logged, never returned, since no caller in core treats the audit trail as
// load-bearing for its own correctness.
func (a *Adapter) LogEvent(envelope model.AuditEnvelope) {
	if err := a.logEvent(envelope); err != nil {
		a.logger.Errorf("audit: LogEvent: error dispatching envelope %s - %s", envelope.ID, err)
	}
}

func (a *Adapter) logEvent(envelope model.AuditEnvelope) error {
	if a.serviceAccountManager == nil {
		return errors.New("service account manager is nil")
	}

	url := fmt.Sprintf("%s/bbs/audit-events", a.auditURL)
	bodyBytes, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := a.serviceAccountManager.MakeRequest(req, "all", "all")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		responseData, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("audit: response code %d", resp.StatusCode)
		}
		return fmt.Errorf("audit: response code %d: %s", resp.StatusCode, responseData)
	}
	return nil
}
