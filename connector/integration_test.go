package connector

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alecthomas/assert/v2"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver (pgx)
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dbforensic/dbforensic/catalog"
)

// TestPostgresIntegration extracts a catalog from a real, disposable
// PostgreSQL instance, the way the teacher's own pull integration test
// exercises its extraction path against a live container rather than a mock.
func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	assert.NoError(t, err)

	defer func() {
		assert.NoError(t, container.Terminate(ctx))
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	assert.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	assert.NoError(t, err)
	defer db.Close()

	assert.NoError(t, setupPostgresIntegrationSchema(db))

	cat, err := Postgres(ctx, db, "public")
	assert.NoError(t, err)

	users, ok := cat.Table(catalog.NewFQN("public", "users"))
	assert.True(t, ok)
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	_, hasEmail := users.Column("email")
	assert.True(t, hasEmail)

	posts, ok := cat.Table(catalog.NewFQN("public", "posts"))
	assert.True(t, ok)
	assert.Equal(t, 1, len(posts.ForeignKeys))
	assert.Equal(t, "users", posts.ForeignKeys[0].ReferencedTable.Name)

	foundIndex := false
	for _, idx := range posts.Indexes {
		if idx.LeadingColumn() == "user_id" {
			foundIndex = true
		}
	}
	assert.True(t, foundIndex)

	views := cat.Views()
	assert.Equal(t, 1, len(views))
	assert.Equal(t, "active_users", views[0].FQN.Name)
}

func setupPostgresIntegrationSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(100) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE TABLE posts (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title VARCHAR(200) NOT NULL,
			published BOOLEAN DEFAULT FALSE
		)`,
		`CREATE INDEX idx_posts_user_id ON posts(user_id)`,
		`CREATE VIEW active_users AS SELECT id, email, name FROM users`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
