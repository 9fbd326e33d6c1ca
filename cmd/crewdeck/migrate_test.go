// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/config"
	"github.com/crewdeck/crewdeck/pkg/errutil"
)

// fakeMigrator implements schemaMigrator for command tests.
type fakeMigrator struct {
	upCalled    bool
	downCalled  bool
	forced      int
	closed      bool
	upErr       error
	versionVal  uint
	dirty       bool
	appliedList []uint
	pendingList []uint
}

func (f *fakeMigrator) Up() error   { f.upCalled = true; return f.upErr }
func (f *fakeMigrator) Down() error { f.downCalled = true; return nil }
func (f *fakeMigrator) Force(version int) error {
	f.forced = version
	return nil
}
func (f *fakeMigrator) Close() error { f.closed = true; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.versionVal, f.dirty, nil
}
func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pendingList, nil }
func (f *fakeMigrator) AppliedMigrations() ([]uint, error) { return f.appliedList, nil }

// swapMigratorFactory installs a fake and restores the default afterwards.
func swapMigratorFactory(t *testing.T, fake *fakeMigrator) {
	t.Helper()
	original := newSchemaMigrator
	newSchemaMigrator = func(string) (schemaMigrator, error) { return fake, nil }
	t.Cleanup(func() { newSchemaMigrator = original })
}

func runMigrateCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewMigrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv(config.EnvDatabaseURL, "")

	_, err := runMigrateCommand(t, "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrate_Up(t *testing.T) {
	fake := &fakeMigrator{}
	swapMigratorFactory(t, fake)

	out, err := runMigrateCommand(t, "up", "--database.url", "postgres://localhost/crewdeck")
	require.NoError(t, err)
	assert.True(t, fake.upCalled)
	assert.True(t, fake.closed, "migrator is closed after the run")
	assert.Contains(t, out, "Migrations applied")
}

func TestMigrate_UpFailure(t *testing.T) {
	fake := &fakeMigrator{upErr: errors.New("schema broken")}
	swapMigratorFactory(t, fake)

	_, err := runMigrateCommand(t, "up", "--database.url", "postgres://localhost/crewdeck")
	require.Error(t, err)
	assert.True(t, fake.closed, "migrator is closed even on failure")
}

func TestMigrate_Down(t *testing.T) {
	fake := &fakeMigrator{}
	swapMigratorFactory(t, fake)

	out, err := runMigrateCommand(t, "down", "--database.url", "postgres://localhost/crewdeck")
	require.NoError(t, err)
	assert.True(t, fake.downCalled)
	assert.Contains(t, out, "Migrations rolled back")
}

func TestMigrate_Status(t *testing.T) {
	fake := &fakeMigrator{
		versionVal:  1,
		appliedList: []uint{1},
		pendingList: []uint{2},
	}
	swapMigratorFactory(t, fake)

	out, err := runMigrateCommand(t, "status", "--database.url", "postgres://localhost/crewdeck")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")
	assert.Contains(t, out, "Applied: 1")
	assert.Contains(t, out, "Pending: 1")
	assert.Contains(t, out, "000001_identity")
	assert.Contains(t, out, "000002_sessions")
}

func TestMigrate_StatusDirty(t *testing.T) {
	fake := &fakeMigrator{versionVal: 2, dirty: true}
	swapMigratorFactory(t, fake)

	out, err := runMigrateCommand(t, "status", "--database.url", "postgres://localhost/crewdeck")
	require.NoError(t, err)
	assert.Contains(t, out, "DIRTY")
}

func TestMigrate_Force(t *testing.T) {
	fake := &fakeMigrator{}
	swapMigratorFactory(t, fake)

	out, err := runMigrateCommand(t, "force", "2", "--database.url", "postgres://localhost/crewdeck")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.forced)
	assert.Contains(t, out, "Forced version to 2")
}

func TestMigrate_ForceRejectsBadVersions(t *testing.T) {
	fake := &fakeMigrator{}
	swapMigratorFactory(t, fake)

	_, err := runMigrateCommand(t, "force", "abc", "--database.url", "postgres://localhost/crewdeck")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")

	_, err = runMigrateCommand(t, "force", "-1", "--database.url", "postgres://localhost/crewdeck")
	require.Error(t, err)
}
