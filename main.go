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

package main

import (
	core "accessgov/core"
	"accessgov/core/model"
	"accessgov/driven/audit"
	"accessgov/driven/conditionalaccess"
	"accessgov/driven/idp"
	"accessgov/driven/metrics"
	"accessgov/driven/notifications"
	"accessgov/driven/smtp"
	storage "accessgov/driven/storage"
	web "accessgov/driver/web"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rokwire/core-auth-library-go/v2/authservice"
	"github.com/rokwire/core-auth-library-go/v2/keys"
	"github.com/rokwire/core-auth-library-go/v2/sigauth"
	"github.com/rokwire/logging-library-go/v2/logs"
)

var (
	// Version : version of this executable
	Version string
	// Build : build date of this executable
	Build string
)

func main() {
	if len(Version) == 0 {
		Version = "dev"
	}

	serviceID := "accessgov"
	loggerOpts := logs.LoggerOpts{
		SuppressRequests: logs.NewStandardHealthCheckHTTPRequestProperties(serviceID + "/version"),
		SensitiveHeaders: []string{"Rokwire-Api-Key", "Internal-Api-Key"},
	}
	logger := logs.NewLogger(serviceID, &loggerOpts)

	coreBBHost := getEnvKey("CORE_BB_HOST", false)
	internalAPIKey := getEnvKey("INTERNAL_API_KEY", true)

	// mongoDB adapter
	mongoDBAuth := getEnvKey("AG_MONGO_AUTH", true)
	mongoDBName := getEnvKey("AG_MONGO_DATABASE", true)
	mongoTimeout := getEnvKey("AG_MONGO_TIMEOUT", false)
	storageAdapter := storage.NewStorageAdapter(mongoDBAuth, mongoDBName, mongoTimeout)
	err := storageAdapter.Start()
	if err != nil {
		log.Fatal("Cannot start the mongoDB adapter - " + err.Error())
	}

	// Auth/service-account plumbing, grounded on the teacher's main.go wiring
	serviceURL := getEnvKey("AG_SERVICE_URL", false)
	authService := authservice.AuthService{
		ServiceID:   serviceID,
		ServiceHost: serviceURL,
		FirstParty:  true,
		AuthBaseURL: coreBBHost,
	}

	serviceRegLoader, err := authservice.NewRemoteServiceRegLoader(&authService, []string{"notifications", "metrics", "conditional-access", "audit"})
	if err != nil {
		logger.Fatalf("Error initializing remote service registration loader: %v", err)
	}

	serviceRegManager, err := authservice.NewServiceRegManager(&authService, serviceRegLoader, false)
	if err != nil {
		log.Fatalf("Error initializing service registration manager: %v", err)
	}

	serviceAccountID := getEnvKey("AG_SERVICE_ACCOUNT_ID", false)
	privKeyRaw := getEnvKey("AG_PRIV_KEY", true)
	privKeyRaw = strings.ReplaceAll(privKeyRaw, "\\n", "\n")
	privKey, err := keys.NewPrivKey(keys.RS256, privKeyRaw)
	if err != nil {
		log.Fatalf("Error parsing priv key: %v", err)
	}
	signatureAuth, err := sigauth.NewSignatureAuth(privKey, serviceRegManager, false, false)
	if err != nil {
		log.Fatalf("Error initializing signature auth: %v", err)
	}

	serviceAccountLoader, err := authservice.NewRemoteServiceAccountLoader(&authService, serviceAccountID, signatureAuth)
	if err != nil {
		log.Fatalf("Error initializing remote service account loader: %v", err)
	}

	serviceAccountManager, err := authservice.NewServiceAccountManager(&authService, serviceAccountLoader)
	if err != nil {
		log.Fatalf("Error initializing service account manager: %v", err)
	}

	// IdP adapter
	idpBaseURL := getEnvKey("IDP_BASE_URL", true)
	idpUsername := getEnvKey("IDP_USERNAME", true)
	idpPassword := getEnvKey("IDP_PASSWORD", true)
	idpAdapter := idp.NewIdPAdapter(idpBaseURL, idpUsername, idpPassword)

	// Notifications adapter, with direct-email fallback
	appID := getEnvKey("AG_APP_ID", true)
	orgID := getEnvKey("AG_ORG_ID", true)
	notificationsBaseURL := getEnvKey("NOTIFICATIONS_BASE_URL", true)
	smtpHost := getEnvKey("SMTP_HOST", false)
	smtpPort := getEnvKey("SMTP_PORT", false)
	smtpUsername := getEnvKey("SMTP_USERNAME", false)
	smtpPassword := getEnvKey("SMTP_PASSWORD", false)
	smtpFromAddr := getEnvKey("SMTP_FROM_ADDR", false)
	mailer := smtp.NewSMTPAdapter(smtpHost, smtpPort, smtpUsername, smtpPassword, smtpFromAddr)
	notificationsAdapter, err := notifications.NewNotificationsAdapter(notificationsBaseURL, appID, orgID, serviceAccountManager, mailer)
	if err != nil {
		log.Fatalf("Error initializing notification adapter: %v", err)
	}

	// Conditional-access adapter
	conditionalAccessBaseURL := getEnvKey("CONDITIONAL_ACCESS_BASE_URL", false)
	conditionalAccessAdapter := conditionalaccess.NewConditionalAccessAdapter(conditionalAccessBaseURL, serviceAccountManager)

	// Audit adapter
	auditBaseURL := getEnvKey("AUDIT_BASE_URL", false)
	auditAdapter := audit.NewAuditAdapter(auditBaseURL, serviceAccountManager, logger)

	// Metrics adapter
	metricsServiceReg, err := serviceRegManager.GetServiceReg("metrics")
	if err != nil {
		log.Fatalf("error finding metrics service reg: %s", err)
	}
	metricsAdapter := metrics.NewMetricsAdapter(metricsServiceReg.Host, internalAPIKey)

	reservedReasonSubstrings := getEnvKey("AG_RESERVED_REASON_SUBSTRINGS", false)
	var reasonSubstringsList []string
	if len(reservedReasonSubstrings) > 0 {
		reasonSubstringsList = strings.Split(reservedReasonSubstrings, ",")
	}

	config := model.ApplicationConfig{
		NameValidationRegex:             getEnvKey("AG_NAME_VALIDATION_REGEX", false),
		NameValidationErrMessage:        getEnvKey("AG_NAME_VALIDATION_ERR_MESSAGE", false),
		DescriptionRequired:             getEnvKey("AG_DESCRIPTION_REQUIRED", false) == "true",
		AccessRequestTTL:                parseDurationEnv("AG_ACCESS_REQUEST_TTL", 30*24*time.Hour),
		ExpirationNotifyWindow:          parseDurationEnv("AG_EXPIRATION_NOTIFY_WINDOW", 7*24*time.Hour),
		ConditionalAccessEnabled:        getEnvKey("AG_CONDITIONAL_ACCESS_ENABLED", false) == "true",
		ReservedRequireReasonSubstrings: reasonSubstringsList,
		ReasonTemplateVerbatimBlock:     getEnvKey("AG_REASON_TEMPLATE_VERBATIM_BLOCK", false),
		MembershipSyncAuthoritative:     getEnvKey("AG_MEMBERSHIP_SYNC_AUTHORITATIVE", false) == "true",
	}

	// application
	application := core.NewApplication(Version, Build, storageAdapter, idpAdapter, notificationsAdapter,
		conditionalAccessAdapter, auditAdapter, metricsAdapter, config, logger)
	application.Start()

	// web adapter
	apiKeys := getAPIKeys()
	host := getEnvKey("AG_HOST", true)
	port := getEnvKey("AG_PORT", false)
	if len(port) == 0 {
		port = "80"
	}
	oidcProvider := getEnvKey("AG_OIDC_PROVIDER", true)
	oidcClientID := getEnvKey("AG_OIDC_CLIENT_ID", true)

	webAdapter := web.NewWebAdapter(application, host, port, apiKeys, oidcProvider, oidcClientID, internalAPIKey)
	webAdapter.Start()
}

func getAPIKeys() []string {
	rokwireAPIKeys := getEnvKey("ROKWIRE_API_KEYS", true)
	rokwireAPIKeysList := strings.Split(rokwireAPIKeys, ",")
	if len(rokwireAPIKeysList) <= 0 {
		log.Fatal("For some reasons the apis keys list is empty")
	}
	return rokwireAPIKeysList
}

func getEnvKey(key string, required bool) string {
	value, exist := os.LookupEnv(key)
	if !exist {
		if required {
			log.Fatal("No provided environment variable for " + key)
		} else {
			log.Print("No provided environment variable for " + key)
		}
	}
	printEnvVar(key, value)
	return value
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	value := getEnvKey(key, false)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid duration for %s, using default: %s", key, err)
		return fallback
	}
	return parsed
}

func printEnvVar(name string, value string) {
	if Version == "dev" {
		log.Printf("%s=%s", name, value)
	}
}
