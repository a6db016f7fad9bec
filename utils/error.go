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

package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// groupError is the concrete Error implementation shared by every error
// kind in the §7 disposition table.
type groupError struct {
	ErrorCode int
	HttpCode  int
	Message   string
	SubError  Error
}

// Error is the typed error interface every engine/request/reconcile
// operation returns instead of a bare error, so callers can disposition on
// ErrorCode without string matching.
type Error interface {
	GetErrorCode() int
	GetHttpCode() int
	GetMessage() string
	GetSubError() Error
	JSONErrorString() string
}

func (err *groupError) GetErrorCode() int {
	return err.ErrorCode
}

func (err *groupError) GetHttpCode() int {
	return err.HttpCode
}

func (err *groupError) GetMessage() string {
	return err.Message
}

func (err *groupError) GetSubError() Error {
	return err.SubError
}

// Error returns the error message
func (err *groupError) Error() string {
	return err.Message
}

// JSONErrorString constructs json representation of the error
func (err *groupError) JSONErrorString() string {
	errorMap := map[string]interface{}{
		"code":      err.ErrorCode,
		"http_code": err.HttpCode,
		"text":      err.Message,
	}
	if err.SubError != nil {
		errorMap["sub_error"] = err.SubError.GetMessage()
	}

	errorData := map[string]interface{}{
		"error": errorMap,
	}
	jsonString, _ := json.Marshal(errorData)
	return string(jsonString)
}

// Error codes, one per §7 error kind.
const (
	codeForbidden       = 1
	codeBadJSON         = 2
	codeValidation      = 3
	codeServer          = 4
	codeDuplication     = 5
	codeMissingParam    = 6
	codeNotFound        = 7
	codeConflict        = 8
	codePolicyDenied    = 9
	codeStoreFailure    = 10
	codeIdPFailure      = 11
	codeHookFailure     = 12
	codeIntegrityDrift  = 13
)

// NewForbiddenError new forbidden error
func NewForbiddenError() Error {
	return &groupError{ErrorCode: codeForbidden, HttpCode: http.StatusForbidden, Message: "forbidden operation"}
}

// NewBadJSONError new bad json error
func NewBadJSONError() Error {
	return &groupError{ErrorCode: codeBadJSON, HttpCode: http.StatusInternalServerError, Message: "bad json"}
}

// NewValidationError new validation error. Disposition: returned to the
// caller, no state change.
func NewValidationError(err error) Error {
	return &groupError{ErrorCode: codeValidation, HttpCode: http.StatusBadRequest, Message: fmt.Sprintf("validation error: %s", err)}
}

// NewDefaultServerError returns default server error
func NewDefaultServerError() Error {
	return NewServerError("server error")
}

// NewServerError new generic abstract error
func NewServerError(message string) Error {
	if message == "" {
		message = "server error"
	}
	return &groupError{ErrorCode: codeServer, HttpCode: http.StatusInternalServerError, Message: message}
}

// NewGroupDuplicationError duplicate name error (§3 invariant 5: names are
// globally case-insensitively unique among non-deleted groups/apps/tags).
func NewGroupDuplicationError() Error {
	return &groupError{ErrorCode: codeDuplication, HttpCode: http.StatusConflict, Message: "name already in use"}
}

// NewMissingParamError missing param error
func NewMissingParamError(message string) Error {
	return &groupError{ErrorCode: codeMissingParam, HttpCode: http.StatusBadRequest, Message: message}
}

// NewNotFoundError not found error
func NewNotFoundError() Error {
	return &groupError{ErrorCode: codeNotFound, HttpCode: http.StatusNotFound, Message: "entity not found"}
}

// NewConflictError: duplicate pending request or other state conflict.
// Disposition: returned; caller retries with different input.
func NewConflictError(message string) Error {
	return &groupError{ErrorCode: codeConflict, HttpCode: http.StatusConflict, Message: message}
}

// NewPolicyDeniedError: self-add gate or reason gate failed. Disposition:
// returned with a human-readable message, state unchanged - the caller
// (ModifyGroupUsers/ModifyRoleGroups) returns the unchanged group together
// with this error.
func NewPolicyDeniedError(message string) Error {
	return &groupError{ErrorCode: codePolicyDenied, HttpCode: http.StatusForbidden, Message: message}
}

// NewStoreFailureError: the entity store transaction aborted. Disposition:
// caller sees failure, no IdP side effects are ever issued for this call.
func NewStoreFailureError(err error) Error {
	return &groupError{ErrorCode: codeStoreFailure, HttpCode: http.StatusInternalServerError, Message: fmt.Sprintf("store failure: %s", err)}
}

// NewIdPFailureError: an IdP call failed after commit. Disposition: logged
// and swallowed by the caller - the reconciler converges on the next pass.
// Exposed as a typed value so callers can choose to surface a warning
// without treating it as a hard failure.
func NewIdPFailureError(err error) Error {
	return &groupError{ErrorCode: codeIdPFailure, HttpCode: http.StatusOK, Message: fmt.Sprintf("idp call failed: %s", err)}
}

// NewHookFailureError: a notification/audit/metrics/conditional-access
// plugin raised. Disposition: logged and swallowed, never propagated.
func NewHookFailureError(hook string, err error) Error {
	return &groupError{ErrorCode: codeHookFailure, HttpCode: http.StatusOK, Message: fmt.Sprintf("%s hook failed: %s", hook, err)}
}

// NewIntegrityDriftError: the reconciler detected an inconsistency it could
// not repair. Disposition: logged and flagged.
func NewIntegrityDriftError(message string) Error {
	return &groupError{ErrorCode: codeIntegrityDrift, HttpCode: http.StatusOK, Message: message}
}
