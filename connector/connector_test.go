package connector

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSqlServerColumnsQueryJoinsSysTypes(t *testing.T) {
	assert.Contains(t, sqlServerColumnsQuery, "sys.columns")
	assert.Contains(t, sqlServerColumnsQuery, "sys.types")
	assert.Contains(t, sqlServerColumnsQuery, "sys.default_constraints")
}

func TestSqlServerIndexesQueryIncludesUsageStats(t *testing.T) {
	assert.Contains(t, sqlServerIndexesQuery, "sys.dm_db_index_usage_stats")
	assert.Contains(t, sqlServerIndexesQuery, "is_primary_key = 0")
}

func TestPostgresForeignKeysQueryUsesPgConstraint(t *testing.T) {
	assert.Contains(t, postgresForeignKeysQuery, "pg_constraint")
	assert.Contains(t, postgresForeignKeysQuery, "contype = 'f'")
}

func TestPostgresIndexesQueryExcludesPrimaryKey(t *testing.T) {
	assert.Contains(t, postgresIndexesQuery, "NOT ix.indisprimary")
}
