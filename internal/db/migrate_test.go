package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/tp", "pgx5://u:p@localhost:5432/tp"},
		{"postgresql://u@db/tp?sslmode=disable", "pgx5://u@db/tp?sslmode=disable"},
		{"pgx5://u@db/tp", "pgx5://u@db/tp"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	var up, down int
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			up++
		case strings.HasSuffix(n, ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("up=%d down=%d, want matching non-zero pairs", up, down)
	}
}
