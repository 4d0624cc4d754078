// Copyright (c) 2025 FlowQ Organization
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/flowqio/flowq/persistence/data_models"
)

func (p sqlTaskStoreImpl) GetGroup(ctx context.Context, groupKey string) (*data_models.Group, error) {
	row, err := p.session.SelectGroup(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	group := groupFromRow(*row)
	return &group, nil
}

func (p sqlTaskStoreImpl) DeleteIdleGroups(
	ctx context.Context, cutoff time.Time, limit int,
) (int64, error) {
	return p.session.DeleteIdleGroups(ctx, cutoff, limit)
}
