package canvas

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// loadSchema returns the statements of an embedded schema file, split on ';'.
func loadSchema(dialect string) ([]string, error) {
	raw, err := schemaFS.ReadFile("schema/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("read %s schema: %w", dialect, err)
	}
	var stmts []string
	for _, part := range strings.Split(string(raw), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func applySchema(ctx context.Context, db *sql.DB, dialect string) error {
	stmts, err := loadSchema(dialect)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", dialect, err)
		}
	}
	return nil
}
