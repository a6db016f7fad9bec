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
	"context"
	"log"
	"net/http"
	"strings"

	"accessgov/core"
	"accessgov/core/model"

	"github.com/casbin/casbin"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Auth bundles the three request-authentication modes the HTTP driver
// accepts: bearer OIDC ID tokens for requester-facing endpoints, an
// INTERNAL-API-KEY header for service-to-service endpoints, and OIDC plus a
// casbin admin enforcer for admin endpoints.
type Auth struct {
	apiKeysAuth  *APIKeysAuth
	idTokenAuth  *IDTokenAuth
	internalAuth *InternalAuth
	adminAuth    *AdminAuth
}

func (auth *Auth) apiKeyCheck(r *http.Request) bool {
	return auth.apiKeysAuth.check(auth.getAPIKey(r))
}

func (auth *Auth) idTokenCheck(r *http.Request) *model.User {
	return auth.idTokenAuth.check(getBearerToken(r))
}

// mixedCheck authenticates with a valid ID token when present, falling back
// to an API key - for endpoints that are readable by anonymous client apps and
// signed-in users alike (e.g. browsing the group directory).
func (auth *Auth) mixedCheck(r *http.Request) (bool, *model.User) {
	if user := auth.idTokenAuth.check(getBearerToken(r)); user != nil {
		return true, user
	}
	if auth.apiKeyCheck(r) {
		return true, nil
	}
	return false, nil
}

func (auth *Auth) internalAuthCheck(r *http.Request) bool {
	return auth.internalAuth.check(auth.getInternalAPIKey(r))
}

func (auth *Auth) adminCheck(r *http.Request) (*model.User, bool) {
	return auth.adminAuth.check(r)
}

func (auth *Auth) getAPIKey(r *http.Request) *string {
	apiKey := r.Header.Get("ROKWIRE-API-KEY")
	if len(apiKey) == 0 {
		return nil
	}
	return &apiKey
}

func (auth *Auth) getInternalAPIKey(r *http.Request) *string {
	internalAPIKey := r.Header.Get("INTERNAL-API-KEY")
	if len(internalAPIKey) == 0 {
		return nil
	}
	return &internalAPIKey
}

func getBearerToken(r *http.Request) *string {
	authorizationHeader := r.Header.Get("Authorization")
	if len(authorizationHeader) == 0 {
		return nil
	}
	split := strings.Fields(authorizationHeader)
	if len(split) != 2 || split[0] != "Bearer" {
		return nil
	}
	return &split[1]
}

// NewAuth creates the auth handler bundle.
func NewAuth(app *core.Application, appKeys []string, internalAPIKey string, oidcProvider string, oidcClientID string,
	adminAuthorization *casbin.Enforcer) *Auth {
	apiKeysAuth := newAPIKeysAuth(appKeys)
	idTokenAuth := newIDTokenAuth(app, oidcProvider, oidcClientID)
	internalAuth := newInternalAuth(internalAPIKey)
	adminAuth := newAdminAuth(app, idTokenAuth, adminAuthorization)

	return &Auth{apiKeysAuth: apiKeysAuth, idTokenAuth: idTokenAuth, internalAuth: internalAuth, adminAuth: adminAuth}
}

/////////////////////////////////////

// APIKeysAuth gates the anonymous/service client surface on a shared key.
type APIKeysAuth struct {
	appKeys []string
}

func (auth *APIKeysAuth) check(apiKey *string) bool {
	if apiKey == nil || len(*apiKey) == 0 {
		return false
	}
	for _, k := range auth.appKeys {
		if k == *apiKey {
			return true
		}
	}
	return false
}

func newAPIKeysAuth(appKeys []string) *APIKeysAuth {
	return &APIKeysAuth{appKeys: appKeys}
}

/////////////////////////////////////

// InternalAuth gates the service-to-service surface on a shared secret.
type InternalAuth struct {
	internalAPIKey string
}

func (auth *InternalAuth) check(internalAPIKey *string) bool {
	return internalAPIKey != nil && len(*internalAPIKey) > 0 && *internalAPIKey == auth.internalAPIKey
}

func newInternalAuth(internalAPIKey string) *InternalAuth {
	return &InternalAuth{internalAPIKey: internalAPIKey}
}

/////////////////////////////////////

type idTokenClaims struct {
	Sub         string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// IDTokenAuth verifies a bearer OIDC ID token and resolves it to a
// model.User, just-in-time provisioning the row on first sign-in (the IdP's
// subject claim is the user's ID in this store, not a client-scoped alias).
type IDTokenAuth struct {
	app      *core.Application
	verifier *oidc.IDTokenVerifier
}

func (auth *IDTokenAuth) check(token *string) *model.User {
	claims := auth.verifyClaims(token)
	if claims == nil {
		return nil
	}

	user, err := auth.app.EnsureUser(claims.Sub, claims.Email, claims.Name)
	if err != nil {
		log.Printf("idTokenAuth: error materializing user %s - %s", claims.Sub, err)
		return nil
	}
	return user
}

func (auth *IDTokenAuth) verifyClaims(token *string) *idTokenClaims {
	if auth.verifier == nil || token == nil || len(*token) == 0 {
		return nil
	}

	idToken, err := auth.verifier.Verify(context.Background(), *token)
	if err != nil {
		log.Printf("idTokenAuth: token verification failed - %s", err)
		return nil
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		log.Printf("idTokenAuth: error reading claims - %s", err)
		return nil
	}
	if claims.Sub == "" {
		return nil
	}
	return &claims
}

func newIDTokenAuth(app *core.Application, oidcProvider string, oidcClientID string) *IDTokenAuth {
	var verifier *oidc.IDTokenVerifier
	if len(oidcProvider) > 0 {
		provider, err := oidc.NewProvider(context.Background(), oidcProvider)
		if err != nil {
			log.Fatalln(err)
		}
		verifier = provider.Verifier(&oidc.Config{ClientID: oidcClientID})
	}
	return &IDTokenAuth{app: app, verifier: verifier}
}

/////////////////////////////////////

// AdminAuth gates the admin surface: a valid ID token plus a casbin decision
// for the caller's resolved permissions over the requested resource/method.
type AdminAuth struct {
	app           *core.Application
	idTokenAuth   *IDTokenAuth
	authorization *casbin.Enforcer
}

func (auth *AdminAuth) check(r *http.Request) (*model.User, bool) {
	token := getBearerToken(r)
	claims := auth.idTokenAuth.verifyClaims(token)
	if claims == nil {
		return nil, false
	}

	obj := r.URL.Path
	act := r.Method
	hasAccess := false
	for _, permission := range claims.Permissions {
		if auth.authorization.Enforce(permission, obj, act) {
			hasAccess = true
			break
		}
	}
	if !hasAccess {
		log.Printf("adminAuth: %s is not permitted to %s %s", claims.Sub, act, obj)
		return nil, true
	}

	user, err := auth.app.EnsureUser(claims.Sub, claims.Email, claims.Name)
	if err != nil {
		log.Printf("adminAuth: error materializing user %s - %s", claims.Sub, err)
		return nil, false
	}
	return user, false
}

func newAdminAuth(app *core.Application, idTokenAuth *IDTokenAuth, authorization *casbin.Enforcer) *AdminAuth {
	return &AdminAuth{app: app, idTokenAuth: idTokenAuth, authorization: authorization}
}
