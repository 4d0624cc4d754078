// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql"

	"github.com/flowqio/flowq/common/log"
	"github.com/flowqio/flowq/common/log/tag"
	"github.com/flowqio/flowq/config"
	"github.com/flowqio/flowq/extensions"
	"github.com/flowqio/flowq/persistence"
)

type sqlTaskStoreImpl struct {
	session extensions.SQLDBSession
	logger  log.Logger
}

var defaultTxOpts *sql.TxOptions = &sql.TxOptions{
	Isolation: sql.LevelReadCommitted,
}

func NewSQLTaskStore(sqlConfig config.SQL, logger log.Logger) (persistence.TaskStore, error) {
	session, err := extensions.NewSQLSession(&sqlConfig)
	return &sqlTaskStoreImpl{
		session: session,
		logger:  logger,
	}, err
}

func (p sqlTaskStoreImpl) Close() error {
	return p.session.Close()
}

func (p sqlTaskStoreImpl) rollback(tx extensions.SQLTransaction) {
	err := tx.Rollback()
	if err != nil {
		p.logger.Error("error on rollback transaction", tag.Error(err))
	}
}
