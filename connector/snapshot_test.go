package connector

import (
	"bytes"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/dbforensic/dbforensic/catalog"
)

func buildSampleCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder(catalog.ProviderPostgres, "public")
	assert.NoError(t, b.AddTable(catalog.Table{
		FQN: catalog.NewFQN("public", "Students"),
		Columns: []catalog.Column{
			{Name: "Id", Ordinal: 1, RawType: "integer", Normalized: catalog.NormalizedType{Kind: catalog.KindInteger}},
			{Name: "Name", Ordinal: 2, RawType: "text", Normalized: catalog.NormalizedType{Kind: catalog.KindString}, Nullable: true},
		},
		PrimaryKey: []string{"Id"},
		RowCount:   10,
	}))
	cat, err := b.Build()
	assert.NoError(t, err)
	return cat
}

func TestSaveAndLoadSnapshotRoundTrips(t *testing.T) {
	cat := buildSampleCatalog(t)

	var buf bytes.Buffer
	assert.NoError(t, SaveSnapshot(&buf, cat, time.Time{}))

	loaded, err := LoadSnapshot(&buf)
	assert.NoError(t, err)

	assert.Equal(t, cat.Provider(), loaded.Provider())
	assert.Equal(t, cat.DefaultSchema(), loaded.DefaultSchema())

	orig, ok := cat.Table(catalog.NewFQN("public", "Students"))
	assert.True(t, ok)
	got, ok := loaded.Table(catalog.NewFQN("public", "Students"))
	assert.True(t, ok)
	assert.Equal(t, orig.PrimaryKey, got.PrimaryKey)
	assert.Equal(t, orig.RowCount, got.RowCount)
	assert.Equal(t, len(orig.Columns), len(got.Columns))
}

func TestLoadSnapshotRejectsEmptyDocument(t *testing.T) {
	_, err := LoadSnapshot(bytes.NewBufferString("provider: postgres\ndefault_schema: public\n"))
	assert.Error(t, err)
}
