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

package audit

import (
	"testing"

	"accessgov/core/model"

	"github.com/rokwire/logging-library-go/v2/logs"
)

// TestLogEventNoTransportLogsRatherThanPanics confirms a delivery failure is
// swallowed and logged, never propagated - LogEvent has no error return, so
// no caller in core can be blocked by the audit sink being unreachable.
func TestLogEventNoTransportLogsRatherThanPanics(t *testing.T) {
	logger := logs.NewLogger("audit-test", &logs.LoggerOpts{})
	a := NewAuditAdapter("https://audit.example.com", nil, logger)

	a.LogEvent(model.AuditEnvelope{ID: "event-1", EventType: model.EventAccessRequestCreate})
}
