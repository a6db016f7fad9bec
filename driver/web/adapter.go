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

package web

import (
	"log"
	"net/http"

	"accessgov/core"
	"accessgov/core/model"
	"accessgov/driver/web/rest"
	"accessgov/utils"

	"github.com/casbin/casbin"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Adapter is the HTTP driver: a gorilla/mux router exposing the client,
// admin, and internal surfaces over the core Application.
type Adapter struct {
	host string
	port string
	auth *Auth

	apisHandler         *rest.ApisHandler
	adminApisHandler    *rest.AdminApisHandler
	internalApisHandler *rest.InternalApisHandler
}

// @title Access Governance Building Block API
// @description Group/role/app access governance API documentation.
// @version 0.1.0
// @host localhost
// @BasePath /ag
// @schemes https

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name ROKWIRE-API-KEY

// @securityDefinitions.apikey AppUserAuth
// @in header (add Bearer prefix to the Authorization value)
// @name Authorization

// @securityDefinitions.apikey IntAPIKeyAuth
// @in header
// @name INTERNAL-API-KEY

// Start starts the web server.
func (we *Adapter) Start() {
	router := mux.NewRouter().StrictSlash(true)

	subrouter := router.PathPrefix("/ag").Subrouter()
	subrouter.PathPrefix("/doc/ui").Handler(we.serveDocUI())
	subrouter.HandleFunc("/doc", we.serveDoc)
	subrouter.HandleFunc("/version", we.wrapFunc(we.apisHandler.Version)).Methods("GET")

	restSubrouter := router.PathPrefix("/ag/api").Subrouter()
	adminSubrouter := restSubrouter.PathPrefix("/admin").Subrouter()
	internalSubrouter := restSubrouter.PathPrefix("/int").Subrouter()

	// Client APIs - requester-facing. The group directory is readable by
	// either an anonymous client app (API key) or a signed-in user.
	restSubrouter.HandleFunc("/groups", we.mixedAuthWrapFunc(we.apisHandler.GetGroups)).Methods("GET")
	restSubrouter.HandleFunc("/groups/{id}", we.mixedAuthWrapFunc(we.apisHandler.GetGroup)).Methods("GET")
	restSubrouter.HandleFunc("/groups/{id}/members", we.idTokenAuthWrapFunc(we.apisHandler.ModifyGroupUsers)).Methods("PUT")
	restSubrouter.HandleFunc("/roles/{id}/groups", we.idTokenAuthWrapFunc(we.apisHandler.ModifyRoleGroups)).Methods("PUT")
	restSubrouter.HandleFunc("/user/grants", we.idTokenAuthWrapFunc(we.apisHandler.GetMyGrants)).Methods("GET")

	restSubrouter.HandleFunc("/access-requests", we.idTokenAuthWrapFunc(we.apisHandler.CreateAccessRequest)).Methods("POST")
	restSubrouter.HandleFunc("/access-requests", we.idTokenAuthWrapFunc(we.apisHandler.GetMyAccessRequests)).Methods("GET")
	restSubrouter.HandleFunc("/access-requests/{id}/approve", we.idTokenAuthWrapFunc(we.apisHandler.ApproveAccessRequest)).Methods("PUT")
	restSubrouter.HandleFunc("/access-requests/{id}/reject", we.idTokenAuthWrapFunc(we.apisHandler.RejectAccessRequest)).Methods("PUT")

	restSubrouter.HandleFunc("/role-requests", we.idTokenAuthWrapFunc(we.apisHandler.CreateRoleRequest)).Methods("POST")
	restSubrouter.HandleFunc("/role-requests", we.idTokenAuthWrapFunc(we.apisHandler.GetMyRoleRequests)).Methods("GET")
	restSubrouter.HandleFunc("/role-requests/{id}/approve", we.idTokenAuthWrapFunc(we.apisHandler.ApproveRoleRequest)).Methods("PUT")
	restSubrouter.HandleFunc("/role-requests/{id}/reject", we.idTokenAuthWrapFunc(we.apisHandler.RejectRoleRequest)).Methods("PUT")

	restSubrouter.HandleFunc("/group-requests", we.idTokenAuthWrapFunc(we.apisHandler.CreateGroupRequest)).Methods("POST")

	// Admin APIs - casbin-gated, ID token protected.
	adminSubrouter.HandleFunc("/apps", we.adminAuthWrapFunc(we.adminApisHandler.GetApps)).Methods("GET")
	adminSubrouter.HandleFunc("/apps", we.adminAuthWrapFunc(we.adminApisHandler.CreateApp)).Methods("POST")
	adminSubrouter.HandleFunc("/apps/{id}", we.adminAuthWrapFunc(we.adminApisHandler.DeleteApp)).Methods("DELETE")
	adminSubrouter.HandleFunc("/apps/{id}/tags", we.adminAuthWrapFunc(we.adminApisHandler.ModifyAppTags)).Methods("PUT")

	adminSubrouter.HandleFunc("/groups", we.adminAuthWrapFunc(we.adminApisHandler.CreateGroup)).Methods("POST")
	adminSubrouter.HandleFunc("/groups/{id}", we.adminAuthWrapFunc(we.adminApisHandler.DeleteGroup)).Methods("DELETE")
	adminSubrouter.HandleFunc("/groups/{id}/type", we.adminAuthWrapFunc(we.adminApisHandler.ModifyGroupType)).Methods("PUT")
	adminSubrouter.HandleFunc("/groups/{id}/unmanage", we.adminAuthWrapFunc(we.adminApisHandler.UnmanageGroup)).Methods("PUT")
	adminSubrouter.HandleFunc("/groups/{id}/tags", we.adminAuthWrapFunc(we.adminApisHandler.ModifyGroupTags)).Methods("PUT")
	adminSubrouter.HandleFunc("/groups/{id}/access-requests", we.adminAuthWrapFunc(we.adminApisHandler.GetPendingAccessRequests)).Methods("GET")

	adminSubrouter.HandleFunc("/sync-configs", we.adminAuthWrapFunc(we.adminApisHandler.GetSyncConfigs)).Methods("GET")

	// Internal APIs - INTERNAL-API-KEY protected, for other building blocks.
	internalSubrouter.HandleFunc("/user/{identifier}/grants", we.internalKeyAuthFunc(we.internalApisHandler.IntGetUserGrants)).Methods("GET")
	internalSubrouter.HandleFunc("/group/{identifier}", we.internalKeyAuthFunc(we.internalApisHandler.IntGetGroup)).Methods("GET")
	internalSubrouter.HandleFunc("/group/{identifier}/grants", we.internalKeyAuthFunc(we.internalApisHandler.IntGetGroupGrants)).Methods("GET")

	log.Fatal(http.ListenAndServe(":"+we.port, router))
}

func (we Adapter) serveDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("access-control-allow-origin", "*")
	http.ServeFile(w, r, "./docs/swagger.yaml")
}

func (we Adapter) serveDocUI() http.Handler {
	url := "https://" + we.host + "/ag/doc"
	return httpSwagger.Handler(httpSwagger.URL(url))
}

func (we *Adapter) wrapFunc(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		utils.LogRequest(req)
		handler(w, req)
	}
}

type idTokenAuthFunc = func(*model.User, http.ResponseWriter, *http.Request)

func (we Adapter) idTokenAuthWrapFunc(handler idTokenAuthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		utils.LogRequest(req)

		user := we.auth.idTokenCheck(req)
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(user, w, req)
	}
}

func (we Adapter) mixedAuthWrapFunc(handler idTokenAuthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		utils.LogRequest(req)

		authenticated, user := we.auth.mixedCheck(req)
		if !authenticated {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(user, w, req)
	}
}

func (we Adapter) adminAuthWrapFunc(handler idTokenAuthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		utils.LogRequest(req)

		user, forbidden := we.auth.adminCheck(req)
		if user == nil {
			if forbidden {
				w.WriteHeader(http.StatusForbidden)
			} else {
				w.WriteHeader(http.StatusUnauthorized)
			}
			return
		}
		handler(user, w, req)
	}
}

func (we Adapter) internalKeyAuthFunc(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		utils.LogRequest(req)

		if !we.auth.internalAuthCheck(req) {
			log.Printf("%s %s unauthorized - missing or wrong INTERNAL-API-KEY header", req.Method, req.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, req)
	}
}

// NewWebAdapter creates a new WebAdapter instance.
func NewWebAdapter(app *core.Application, host string, port string, appKeys []string, oidcProvider string, oidcClientID string,
	internalAPIKey string) *Adapter {
	authorization := casbin.NewEnforcer("driver/web/authorization_model.conf", "driver/web/authorization_policy.csv")

	auth := NewAuth(app, appKeys, internalAPIKey, oidcProvider, oidcClientID, authorization)

	apisHandler := rest.NewApisHandler(app)
	adminApisHandler := rest.NewAdminApisHandler(app)
	internalApisHandler := rest.NewInternalApisHandler(app)

	return &Adapter{host: host, port: port, auth: auth, apisHandler: apisHandler, adminApisHandler: adminApisHandler, internalApisHandler: internalApisHandler}
}
