package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrdersAndParsesNames(t *testing.T) {
	source := fstest.MapFS{
		"0002_create_settings.sql":          {Data: []byte("CREATE TABLE settings ();")},
		"0001_create_enrollment_schema.sql": {Data: []byte("CREATE TABLE courses ();")},
		"README.md":                         {Data: []byte("ignored")},
	}

	runner := NewMigrationRunner(nil, source)
	got, err := runner.loadMigrations()
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "0001", got[0].ID)
	assert.Equal(t, "create enrollment schema", got[0].Description)
	assert.Equal(t, "CREATE TABLE courses ();", got[0].SQL)
	assert.Equal(t, "0002", got[1].ID)
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	runner := NewMigrationRunner(nil, fstest.MapFS{"schema.sql": {Data: []byte("")}})
	_, err := runner.loadMigrations()
	assert.Error(t, err)
}
