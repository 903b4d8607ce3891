package database

import (
	"context"
	"embed"
	"fmt"
	"path"
	"strings"
)

//go:embed sql/*.sql
var procedureFiles embed.FS

// installProcedures (re)creates every stored procedure found in the embedded sql directory.
// The procedure name is taken from the file name.
func (d *Database) installProcedures(ctx context.Context) error {
	entries, err := procedureFiles.ReadDir("sql")
	if err != nil {
		return err
	}

	for _, e := range entries {
		body, err := procedureFiles.ReadFile(path.Join("sql", e.Name()))
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(e.Name(), ".sql")

		err = d.db.WithContext(ctx).Exec(fmt.Sprintf("DROP PROCEDURE IF EXISTS %s", name)).Error
		if err != nil {
			return fmt.Errorf("failed to drop procedure %s: %w", name, err)
		}

		err = d.db.WithContext(ctx).Exec(string(body)).Error
		if err != nil {
			return fmt.Errorf("failed to create procedure %s: %w", name, err)
		}

		d.log.Debug().Msgf("installed stored procedure %s", name)
	}

	return nil
}
