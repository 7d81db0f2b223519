// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/lukasdietrich/spoolmail/internal/models"
)

// MockQueryer is a test double for the raw query surface. Services under
// test talk to mocked DAOs, so the sql methods are inert placeholders.
type MockQueryer struct {
	mock.Mock
}

func (m *MockQueryer) DriverName() string {
	return driverName
}

func (m *MockQueryer) Rebind(query string) string {
	return query
}

func (m *MockQueryer) BindNamed(query string, arg any) (string, []any, error) {
	return query, nil, nil
}

func (m *MockQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, sql.ErrConnDone
}

func (m *MockQueryer) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, sql.ErrConnDone
}

func (m *MockQueryer) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

func (m *MockQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, sql.ErrConnDone
}

// MockConn is a testify mock for the Conn interface.
type MockConn struct {
	MockQueryer
}

func (m *MockConn) Begin(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)

	if tx := args.Get(0); tx != nil {
		return tx.(Tx), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// MockTx is a testify mock for the Tx interface.
type MockTx struct {
	MockQueryer
}

func (m *MockTx) Commit() error {
	return m.Called().Error(0)
}

func (m *MockTx) Rollback() error {
	return m.Called().Error(0)
}

func (m *MockTx) RollbackWith(callback func()) error {
	return m.Called(callback).Error(0)
}

// MockQueueDao is a testify mock for the QueueDao interface.
type MockQueueDao struct {
	mock.Mock
}

func (m *MockQueueDao) Insert(ctx context.Context, q Queryer, mail *models.QueuedMailEntity) error {
	return m.Called(ctx, q, mail).Error(0)
}

func (m *MockQueueDao) Update(ctx context.Context, q Queryer, mail *models.QueuedMailEntity) error {
	return m.Called(ctx, q, mail).Error(0)
}

func (m *MockQueueDao) FindByID(ctx context.Context, q Queryer, id string) (*models.QueuedMailEntity, error) {
	args := m.Called(ctx, q, id)

	if mail := args.Get(0); mail != nil {
		return mail.(*models.QueuedMailEntity), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) FindDue(ctx context.Context, q Queryer, limit int, now int64) ([]models.QueuedMailEntity, error) {
	args := m.Called(ctx, q, limit, now)

	if mails := args.Get(0); mails != nil {
		return mails.([]models.QueuedMailEntity), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) MarkProcessing(ctx context.Context, q Queryer, ids []string) ([]string, error) {
	args := m.Called(ctx, q, ids)

	if affected := args.Get(0); affected != nil {
		return affected.([]string), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) Search(ctx context.Context, q Queryer, filter QueueFilter) ([]models.QueuedMailEntity, error) {
	args := m.Called(ctx, q, filter)

	if mails := args.Get(0); mails != nil {
		return mails.([]models.QueuedMailEntity), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) UpdateStatusAll(
	ctx context.Context,
	q Queryer,
	ids []string,
	from []models.QueueStatus,
	to models.QueueStatus,
) ([]string, error) {
	args := m.Called(ctx, q, ids, from, to)

	if affected := args.Get(0); affected != nil {
		return affected.([]string), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) ResetForRetry(ctx context.Context, q Queryer, ids []string) ([]string, error) {
	args := m.Called(ctx, q, ids)

	if affected := args.Get(0); affected != nil {
		return affected.([]string), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) DeleteAll(ctx context.Context, q Queryer, ids []string) (int64, error) {
	args := m.Called(ctx, q, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueDao) CountByStatus(ctx context.Context, q Queryer, since int64) ([]StatusCount, error) {
	args := m.Called(ctx, q, since)

	if counts := args.Get(0); counts != nil {
		return counts.([]StatusCount), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueDao) ResetStuckProcessing(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	args := m.Called(ctx, q, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueDao) DeleteTerminalBefore(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	args := m.Called(ctx, q, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockQueueLogDao is a testify mock for the QueueLogDao interface.
type MockQueueLogDao struct {
	mock.Mock
}

func (m *MockQueueLogDao) Insert(ctx context.Context, q Queryer, entry *models.QueueLogEntity) error {
	return m.Called(ctx, q, entry).Error(0)
}

func (m *MockQueueLogDao) FindByQueue(ctx context.Context, q Queryer, queueID string) ([]models.QueueLogEntity, error) {
	args := m.Called(ctx, q, queueID)

	if entries := args.Get(0); entries != nil {
		return entries.([]models.QueueLogEntity), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockQueueLogDao) DeleteOrphaned(ctx context.Context, q Queryer) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueLogDao) DeleteBefore(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	args := m.Called(ctx, q, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
