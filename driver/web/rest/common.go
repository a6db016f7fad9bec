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
	"encoding/json"
	"log"
	"net/http"

	"accessgov/utils"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("rest: error encoding response - %s", err)
	}
}

func writeGroupError(w http.ResponseWriter, err utils.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetHttpCode())
	w.Write([]byte(err.JSONErrorString()))
}

func writeInternalError(w http.ResponseWriter, action string, err error) {
	log.Printf("rest: error %s - %s", action, err)
	w.WriteHeader(http.StatusInternalServerError)
}

func decodeBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func getStringQueryParam(r *http.Request, name string) *string {
	values, ok := r.URL.Query()[name]
	if ok && len(values[0]) > 0 {
		v := values[0]
		return &v
	}
	return nil
}
