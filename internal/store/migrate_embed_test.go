// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	fileNames := make(map[string]bool)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for name := range fileNames {
		assert.True(t, pattern.MatchString(name),
			"file %s should match pattern NNNNNN_name.(up|down).sql", name)

		// Every up migration needs a matching down migration and vice versa.
		var pair string
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			pair = base + ".down.sql"
		} else {
			pair = strings.TrimSuffix(name, ".down.sql") + ".up.sql"
		}
		assert.True(t, fileNames[pair], "%s has no counterpart %s", name, pair)
	}

	assert.True(t, fileNames["000001_create_users.up.sql"])
}

func TestMigrationsFS_UsersSchema(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_create_users.up.sql")
	require.NoError(t, err)

	schema := string(up)
	assert.Contains(t, schema, "CONSTRAINT users_username_key UNIQUE (username)")
	for _, column := range []string{"id", "username", "fullname", "password_hash", "created_at"} {
		assert.Contains(t, schema, column)
	}
}
