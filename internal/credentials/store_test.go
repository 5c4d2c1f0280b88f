// Copyright (c) 2026 John Earle
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

package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(...any) error { return r.err }

type fakeDB struct {
	execs []string
	row   fakeRow
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("OK"), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestNewStore_CreatesSchema(t *testing.T) {
	db := &fakeDB{}
	_, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	assert.True(t, strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS gmail_credentials"))
}

func TestNewStore_SchemaFailure(t *testing.T) {
	_, err := NewStore(context.Background(), &fakeDB{err: errors.New("permission denied")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure credential schema")
}

func TestStore_GetMissingUser(t *testing.T) {
	s := &Store{db: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}

	rec, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_GetScanError(t *testing.T) {
	s := &Store{db: &fakeDB{row: fakeRow{err: errors.New("conn reset")}}}

	_, err := s.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1")
}

func TestStore_ListUsersQueryError(t *testing.T) {
	s := &Store{db: &fakeDB{}}
	_, err := s.ListUsers(context.Background())
	assert.Error(t, err)
}
