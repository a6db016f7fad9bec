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

package storage

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type database struct {
	mongoDBAuth  string
	mongoDBName  string
	mongoTimeout time.Duration

	db       *mongo.Database
	dbClient *mongo.Client

	configs        *collectionWrapper
	syncTimes      *collectionWrapper
	syncConfigs    *collectionWrapper
	users          *collectionWrapper
	apps           *collectionWrapper
	groups         *collectionWrapper
	tags           *collectionWrapper
	groupTagMaps   *collectionWrapper
	appTagMaps     *collectionWrapper
	grants         *collectionWrapper
	roleGroupMaps  *collectionWrapper
	accessRequests *collectionWrapper
	roleRequests   *collectionWrapper
	groupRequests  *collectionWrapper

	listeners []Listener
}

func (m *database) start() error {
	log.Println("database -> start")

	clientOptions := options.Client().ApplyURI(m.mongoDBAuth)
	connectContext, cancel := context.WithTimeout(context.Background(), m.mongoTimeout)
	client, err := mongo.Connect(connectContext, clientOptions)
	cancel()
	if err != nil {
		return err
	}

	pingContext, cancel := context.WithTimeout(context.Background(), m.mongoTimeout)
	err = client.Ping(pingContext, nil)
	cancel()
	if err != nil {
		return err
	}

	db := client.Database(m.mongoDBName)

	configs := &collectionWrapper{database: m, coll: db.Collection("configs")}
	if err = m.applyConfigsChecks(configs); err != nil {
		return err
	}

	syncTimes := &collectionWrapper{database: m, coll: db.Collection("sync_times")}
	if err = m.applySyncTimesChecks(syncTimes); err != nil {
		return err
	}

	syncConfigs := &collectionWrapper{database: m, coll: db.Collection("sync_configs")}
	if err = m.applySyncConfigsChecks(syncConfigs); err != nil {
		return err
	}

	users := &collectionWrapper{database: m, coll: db.Collection("users")}
	if err = m.applyUsersChecks(users); err != nil {
		return err
	}

	apps := &collectionWrapper{database: m, coll: db.Collection("apps")}
	if err = m.applyAppsChecks(apps); err != nil {
		return err
	}

	groups := &collectionWrapper{database: m, coll: db.Collection("groups")}
	if err = m.applyGroupsChecks(groups); err != nil {
		return err
	}

	tags := &collectionWrapper{database: m, coll: db.Collection("tags")}
	if err = m.applyTagsChecks(tags); err != nil {
		return err
	}

	groupTagMaps := &collectionWrapper{database: m, coll: db.Collection("group_tag_maps")}
	if err = m.applyGroupTagMapsChecks(groupTagMaps); err != nil {
		return err
	}

	appTagMaps := &collectionWrapper{database: m, coll: db.Collection("app_tag_maps")}
	if err = m.applyAppTagMapsChecks(appTagMaps); err != nil {
		return err
	}

	grants := &collectionWrapper{database: m, coll: db.Collection("grants")}
	if err = m.applyGrantsChecks(grants); err != nil {
		return err
	}

	roleGroupMaps := &collectionWrapper{database: m, coll: db.Collection("role_group_maps")}
	if err = m.applyRoleGroupMapsChecks(roleGroupMaps); err != nil {
		return err
	}

	accessRequests := &collectionWrapper{database: m, coll: db.Collection("access_requests")}
	if err = m.applyAccessRequestsChecks(accessRequests); err != nil {
		return err
	}

	roleRequests := &collectionWrapper{database: m, coll: db.Collection("role_requests")}
	if err = m.applyRoleRequestsChecks(roleRequests); err != nil {
		return err
	}

	groupRequests := &collectionWrapper{database: m, coll: db.Collection("group_requests")}
	if err = m.applyGroupRequestsChecks(groupRequests); err != nil {
		return err
	}

	m.db = db
	m.dbClient = client

	m.configs = configs
	m.syncTimes = syncTimes
	m.syncConfigs = syncConfigs
	m.users = users
	m.apps = apps
	m.groups = groups
	m.tags = tags
	m.groupTagMaps = groupTagMaps
	m.appTagMaps = appTagMaps
	m.grants = grants
	m.roleGroupMaps = roleGroupMaps
	m.accessRequests = accessRequests
	m.roleRequests = roleRequests
	m.groupRequests = groupRequests

	go m.configs.Watch(nil)
	go m.syncConfigs.Watch(nil)

	m.listeners = []Listener{}

	return nil
}

func (m *database) applyConfigsChecks(configs *collectionWrapper) error {
	log.Println("apply configs checks.....")

	err := configs.AddIndex(bson.D{primitive.E{Key: "type", Value: 1}}, true)
	if err != nil {
		return err
	}

	log.Println("configs checks passed")
	return nil
}

func (m *database) applySyncTimesChecks(syncTimes *collectionWrapper) error {
	log.Println("apply sync times checks.....")

	err := syncTimes.AddIndex(bson.D{primitive.E{Key: "key", Value: 1}}, true)
	if err != nil {
		return err
	}

	log.Println("sync times checks passed")
	return nil
}

func (m *database) applySyncConfigsChecks(syncConfigs *collectionWrapper) error {
	log.Println("apply sync configs checks.....")

	err := syncConfigs.AddIndex(bson.D{primitive.E{Key: "type", Value: 1}}, true)
	if err != nil {
		return err
	}

	log.Println("sync configs checks passed")
	return nil
}

func (m *database) applyUsersChecks(users *collectionWrapper) error {
	log.Println("apply users checks.....")

	err := users.AddIndex(bson.D{primitive.E{Key: "email", Value: 1}}, true)
	if err != nil {
		return err
	}

	err = users.AddIndex(bson.D{primitive.E{Key: "deleted_at", Value: 1}}, false)
	if err != nil {
		return err
	}

	log.Println("users checks passed")
	return nil
}

func (m *database) applyAppsChecks(apps *collectionWrapper) error {
	log.Println("apply apps checks.....")

	err := apps.AddIndex(bson.D{primitive.E{Key: "name", Value: 1}}, true)
	if err != nil {
		return err
	}

	log.Println("apps checks passed")
	return nil
}

func (m *database) applyGroupsChecks(groups *collectionWrapper) error {
	log.Println("apply groups checks.....")

	indexes, _ := groups.ListIndexes()
	indexMapping := map[string]interface{}{}
	for _, index := range indexes {
		name := index["name"].(string)
		indexMapping[name] = index
	}

	if indexMapping["name_1"] == nil {
		err := groups.AddIndex(bson.D{primitive.E{Key: "name", Value: 1}}, true)
		if err != nil {
			return err
		}
	}

	if indexMapping["type_1"] == nil {
		err := groups.AddIndex(bson.D{primitive.E{Key: "type", Value: 1}}, false)
		if err != nil {
			return err
		}
	}

	if indexMapping["app_id_1"] == nil {
		err := groups.AddIndex(bson.D{primitive.E{Key: "app_id", Value: 1}}, false)
		if err != nil {
			return err
		}
	}

	if indexMapping["deleted_at_1"] == nil {
		err := groups.AddIndex(bson.D{primitive.E{Key: "deleted_at", Value: 1}}, false)
		if err != nil {
			return err
		}
	}

	log.Println("groups checks passed")
	return nil
}

func (m *database) applyTagsChecks(tags *collectionWrapper) error {
	log.Println("apply tags checks.....")

	err := tags.AddIndex(bson.D{primitive.E{Key: "name", Value: 1}}, true)
	if err != nil {
		return err
	}

	log.Println("tags checks passed")
	return nil
}

func (m *database) applyGroupTagMapsChecks(groupTagMaps *collectionWrapper) error {
	log.Println("apply group tag maps checks.....")

	err := groupTagMaps.AddIndex(bson.D{
		primitive.E{Key: "group_id", Value: 1},
		primitive.E{Key: "tag_id", Value: 1},
	}, true)
	if err != nil {
		return err
	}

	log.Println("group tag maps checks passed")
	return nil
}

func (m *database) applyAppTagMapsChecks(appTagMaps *collectionWrapper) error {
	log.Println("apply app tag maps checks.....")

	err := appTagMaps.AddIndex(bson.D{
		primitive.E{Key: "app_id", Value: 1},
		primitive.E{Key: "tag_id", Value: 1},
	}, true)
	if err != nil {
		return err
	}

	log.Println("app tag maps checks passed")
	return nil
}

func (m *database) applyGrantsChecks(grants *collectionWrapper) error {
	log.Println("apply grants checks.....")

	indexes, _ := grants.ListIndexes()
	indexMapping := map[string]interface{}{}
	for _, index := range indexes {
		name := index["name"].(string)
		indexMapping[name] = index
	}

	if indexMapping["user_id_1_group_id_1"] == nil {
		err := grants.AddIndex(bson.D{
			primitive.E{Key: "user_id", Value: 1},
			primitive.E{Key: "group_id", Value: 1},
		}, false)
		if err != nil {
			return err
		}
	}

	if indexMapping["group_id_1_ended_at_1"] == nil {
		err := grants.AddIndex(bson.D{
			primitive.E{Key: "group_id", Value: 1},
			primitive.E{Key: "ended_at", Value: 1},
		}, false)
		if err != nil {
			return err
		}
	}

	if indexMapping["ended_at_1"] == nil {
		err := grants.AddIndex(bson.D{primitive.E{Key: "ended_at", Value: 1}}, false)
		if err != nil {
			return err
		}
	}

	log.Println("grants checks passed")
	return nil
}

func (m *database) applyRoleGroupMapsChecks(roleGroupMaps *collectionWrapper) error {
	log.Println("apply role group maps checks.....")

	err := roleGroupMaps.AddIndex(bson.D{
		primitive.E{Key: "role_group_id", Value: 1},
		primitive.E{Key: "ended_at", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	err = roleGroupMaps.AddIndex(bson.D{
		primitive.E{Key: "group_id", Value: 1},
		primitive.E{Key: "ended_at", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	log.Println("role group maps checks passed")
	return nil
}

func (m *database) applyAccessRequestsChecks(accessRequests *collectionWrapper) error {
	log.Println("apply access requests checks.....")

	err := accessRequests.AddIndex(bson.D{
		primitive.E{Key: "status", Value: 1},
		primitive.E{Key: "resolved_at", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	err = accessRequests.AddIndex(bson.D{
		primitive.E{Key: "requester_id", Value: 1},
		primitive.E{Key: "requested_group_id", Value: 1},
		primitive.E{Key: "status", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	log.Println("access requests checks passed")
	return nil
}

func (m *database) applyRoleRequestsChecks(roleRequests *collectionWrapper) error {
	log.Println("apply role requests checks.....")

	err := roleRequests.AddIndex(bson.D{
		primitive.E{Key: "status", Value: 1},
		primitive.E{Key: "resolved_at", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	log.Println("role requests checks passed")
	return nil
}

func (m *database) applyGroupRequestsChecks(groupRequests *collectionWrapper) error {
	log.Println("apply group requests checks.....")

	err := groupRequests.AddIndex(bson.D{
		primitive.E{Key: "status", Value: 1},
		primitive.E{Key: "resolved_at", Value: 1},
	}, false)
	if err != nil {
		return err
	}

	log.Println("group requests checks passed")
	return nil
}

func (m *database) onDataChanged(changeDoc map[string]interface{}) {
	if changeDoc == nil {
		return
	}
	log.Printf("onDataChanged: %+v\n", changeDoc)
	ns := changeDoc["ns"]
	if ns == nil {
		return
	}
	nsMap := ns.(map[string]interface{})
	coll := nsMap["coll"]

	switch coll {
	case "configs":
		log.Println("configs collection changed")
		for _, listener := range m.listeners {
			listener.OnConfigsChanged()
		}
	case "sync_configs":
		log.Println("sync_configs collection changed")
		for _, listener := range m.listeners {
			go listener.OnSyncConfigsChanged()
		}
	}
}
