package connector

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/dbforensic/dbforensic/catalog"
)

func TestNormalizeSqlServerType(t *testing.T) {
	cases := []struct {
		name      string
		typeName  string
		maxLength int
		want      catalog.ColumnKind
	}{
		{"int", "int", 4, catalog.KindInteger},
		{"bit", "bit", 1, catalog.KindBoolean},
		{"uniqueidentifier", "uniqueidentifier", 16, catalog.KindUUID},
		{"datetime2", "datetime2", 8, catalog.KindDateTime},
		{"varbinary", "varbinary", -1, catalog.KindBinary},
		{"xml", "xml", -1, catalog.KindOther},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NormalizeSqlServerType(c.typeName, c.maxLength, 0, 0)
			assert.Equal(t, c.want, got.Kind)
		})
	}
}

func TestNormalizeSqlServerVarcharLength(t *testing.T) {
	got := NormalizeSqlServerType("varchar", 50, 0, 0)
	assert.Equal(t, catalog.KindString, got.Kind)
	assert.Equal(t, 50, *got.Length)
}

func TestNormalizeSqlServerNvarcharHalvesLength(t *testing.T) {
	got := NormalizeSqlServerType("nvarchar", 100, 0, 0)
	assert.Equal(t, 50, *got.Length)
}

func TestNormalizePostgresType(t *testing.T) {
	cases := []struct {
		raw  string
		want catalog.ColumnKind
	}{
		{"integer", catalog.KindInteger},
		{"character varying", catalog.KindString},
		{"boolean", catalog.KindBoolean},
		{"timestamp without time zone", catalog.KindDateTime},
		{"jsonb", catalog.KindJSON},
		{"uuid", catalog.KindUUID},
		{"bytea", catalog.KindBinary},
		{"box", catalog.KindOther},
	}
	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			got := NormalizePostgresType(c.raw)
			assert.Equal(t, c.want, got.Kind)
		})
	}
}

func TestNormalizePostgresTypeExtractsLength(t *testing.T) {
	got := NormalizePostgresType("character varying(120)")
	assert.Equal(t, catalog.KindString, got.Kind)
	assert.Equal(t, 120, *got.Length)
}
