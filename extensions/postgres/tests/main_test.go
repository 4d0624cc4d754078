// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package tests

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/extensions/postgres"
	"github.com/flowqio/flowq/extensions/postgres/postgrestool"
	"github.com/flowqio/flowq/persistence"
	"github.com/flowqio/flowq/persistence/lease"
	"github.com/flowqio/flowq/persistence/task"
)

// enablePostgresTestEnv gates this package behind a live postgres instance;
// without it the whole package is skipped
const enablePostgresTestEnv = "FLOWQ_TEST_POSTGRES"

var store persistence.TaskStore
var leaseStore persistence.LeaseStore

func TestMain(m *testing.M) {
	if os.Getenv(enablePostgresTestEnv) == "" {
		fmt.Printf("set %v to run the postgres persistence tests\n", enablePostgresTestEnv)
		os.Exit(0)
	}

	testDBName := fmt.Sprintf("test%v", time.Now().UnixNano())
	fmt.Println("using database name ", testDBName)

	sqlConfig := &config.SQL{
		ConnectAddr:     fmt.Sprintf("%v:%v", postgrestool.DefaultEndpoint, postgrestool.DefaultPort),
		User:            postgrestool.DefaultUserName,
		Password:        postgrestool.DefaultPassword,
		DBExtensionName: postgres.ExtensionName,
		DatabaseName:    testDBName,
	}

	err := extensions.CreateDatabase(*sqlConfig, testDBName)
	if err != nil {
		panic(err)
	}

	err = extensions.SetupSchema(sqlConfig, "../../../"+postgrestool.DefaultSchemaFilePath)
	if err != nil {
		panic(err)
	}

	logger := log.NewDevelopmentLogger()
	store, err = task.NewSQLTaskStore(*sqlConfig, logger)
	if err != nil {
		panic(err)
	}
	leaseStore, err = lease.NewSQLLeaseStore(*sqlConfig, logger)
	if err != nil {
		panic(err)
	}

	resultCode := m.Run()
	fmt.Println("finished running persistence test with status code", resultCode)

	_ = store.Close()
	_ = leaseStore.Close()
	_ = extensions.DropDatabase(*sqlConfig, testDBName)
	fmt.Println("testing database deleted")
	os.Exit(resultCode)
}
