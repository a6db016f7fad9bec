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

package core

import (
	"time"

	"accessgov/core/model"

	"github.com/robfig/cron/v3"
	"github.com/rokwire/logging-library-go/v2/logs"
)

type scheduledSweep struct {
	taskID *cron.EntryID
	cron   string
}

// Application is the hexagonal core: every mutation the drivers (HTTP API,
// reconciler cron) invoke runs through here, against the Storage/IdPClient/
// NotificationHook/ConditionalAccessHook/AuditHook/MetricsHook ports.
type Application struct {
	version string
	build   string

	storage           Storage
	idp               IdPClient
	notifications     NotificationHook
	conditionalAccess ConditionalAccessHook
	audit             AuditHook
	metrics           MetricsHook

	config model.ApplicationConfig
	logger *logs.Logger

	// reconciler sweep scheduling, one cron entry per model.SyncConfig row.
	scheduler *cron.Cron
	sweeps    map[string]scheduledSweep
}

// Start wires the reconciler's cron schedule.
func (app *Application) Start() {
	app.setupSweepSchedule()
}

// setupSweepSchedule rebuilds the reconciler's cron entries from the current
// sync_configs rows, grounded on the teacher's setupSyncManagedGroupTimer -
// generalized from one Authman-sync timer per (appID, orgID) to one timer
// per reconciler sweep kind (§4.6).
func (app *Application) setupSweepSchedule() {
	configs, err := app.storage.FindSyncConfigs(nil)
	if err != nil {
		app.log("error loading sync configs: " + err.Error())
		return
	}

	for _, config := range configs {
		existing, ok := app.sweeps[config.Type]

		if ok && existing.cron != config.CRON && existing.taskID != nil {
			app.scheduler.Remove(*existing.taskID)
			delete(app.sweeps, config.Type)
		}

		if (!ok || existing.cron != config.CRON) && config.CRON != "" {
			sweepType := config.Type
			runner := app.sweepRunner(sweepType)
			taskID, err := app.scheduler.AddFunc(config.CRON, runner)
			if err != nil {
				app.log("error scheduling sweep " + sweepType + ": " + err.Error())
				continue
			}
			app.sweeps[sweepType] = scheduledSweep{taskID: &taskID, cron: config.CRON}
		}
	}
	app.scheduler.Start()
}

// sweepRunner dispatches a scheduled tick to the matching reconcile.go sweep,
// gated by sync_times so overlapping runs of the same kind never race.
func (app *Application) sweepRunner(sweepType string) func() {
	return func() {
		if err := app.runSweep(sweepType); err != nil {
			app.log("sweep " + sweepType + " failed: " + err.Error())
		}
	}
}

func (app *Application) log(message string) {
	if app.logger != nil {
		app.logger.Info(message)
		return
	}
}

// Version returns the running build's version string.
func (app *Application) Version() string {
	return app.version
}

// Build returns the running build's build identifier.
func (app *Application) Build() string {
	return app.build
}

// NewApplication builds the core application, wiring every driven port.
func NewApplication(version string, build string, storage Storage, idp IdPClient, notifications NotificationHook,
	conditionalAccess ConditionalAccessHook, audit AuditHook, metrics MetricsHook, config model.ApplicationConfig,
	logger *logs.Logger) *Application {

	scheduler := cron.New(cron.WithLocation(time.UTC))
	application := Application{
		version:           version,
		build:             build,
		storage:           storage,
		idp:               idp,
		notifications:     notifications,
		conditionalAccess: conditionalAccess,
		audit:             audit,
		metrics:           metrics,
		config:            config,
		logger:            logger,
		scheduler:         scheduler,
		sweeps:            map[string]scheduledSweep{},
	}
	return &application
}
