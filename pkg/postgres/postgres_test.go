package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_DSN(t *testing.T) {
	t.Parallel()
	cfg := DB{Host: "db", Port: 5433, Username: "lib", Password: "p@ss", NameDB: "library", SSLMode: "disable"}
	require.Equal(t, "postgres://lib:p%40ss@db:5433/library?sslmode=disable", cfg.DSN())
}
