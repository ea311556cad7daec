package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/random"
)

// migrate makes the database schema match schemaDefinition declaratively.
//
// The target schema is built in a scratch in-memory database and compared with the live one through
// sqlite_schema. Removed tables are dropped, new tables created, and changed tables rebuilt with the common
// columns copied over following https://www.sqlite.org/lang_altertable.html#otheralter. Missing indexes are
// created last.
func (db *Database) migrate(ctx context.Context, schemaDefinition string) (err error) {
	var targetName string
	if targetName, err = random.Letters(20); err != nil { //nolint:mnd // long enough to be unique
		return errors.Wrap(err, "generate schema target name")
	}
	targetDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", targetName)
	var target *sqlx.DB
	if target, err = sqlx.Open("sqlite3", targetDSN); err != nil {
		return errors.Wrap(err, "open schema target database")
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target database",
				errors.SlogError(errors.Wrap(closeErr, "close schema target")))
		}
	}()
	// An open connection keeps the shared in-memory database alive while it is attached.
	target.SetMaxOpenConns(1)
	if err = target.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping schema target")
	}
	if strings.TrimSpace(schemaDefinition) != "" {
		if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
			return errors.Wrap(err, "create schema target")
		}
	}

	// ATTACH and the foreign key pragma are per connection and not allowed inside a transaction.
	var conn *sqlx.Conn
	if conn, err = db.ReadWrite.Connx(ctx); err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		_ = conn.Close()
	}()
	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	defer func() {
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign key validation"))
		}
	}()
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS schema_target", targetDSN); err != nil {
		return errors.Wrap(err, "attach schema target")
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE schema_target"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach schema target"))
		}
	}()

	var tx *sqlx.Tx
	if tx, err = conn.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = db.syncTables(ctx, tx); err != nil {
		return errors.Wrap(err, "sync tables")
	}
	if err = db.createMissingIndexes(ctx, tx); err != nil {
		return errors.Wrap(err, "create indexes")
	}
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit schema")
	}
	return nil
}

type tableDiff struct {
	Name       string `db:"name"`
	CurrentSQL string `db:"current_sql"`
	TargetSQL  string `db:"target_sql"`
}

func (db *Database) syncTables(ctx context.Context, tx *sqlx.Tx) error {
	var dropped []string
	if err := tx.SelectContext(ctx, &dropped, `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN schema_target.sqlite_schema AS target ON target.name = current.name AND target.type = current.type
WHERE current.type = 'table' AND target.name IS NULL AND current.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query dropped tables")
	}
	for _, table := range dropped {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	var created []string
	if err := tx.SelectContext(ctx, &created, `SELECT target.sql
FROM schema_target.sqlite_schema AS target
LEFT JOIN main.sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = 'table' AND current.name IS NULL AND target.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, stmt := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", stmt))
		}
	}

	var changed []tableDiff
	if err := tx.SelectContext(ctx, &changed, `SELECT current.name, current.sql AS current_sql, target.sql AS target_sql
FROM main.sqlite_schema AS current
JOIN schema_target.sqlite_schema AS target ON target.name = current.name AND target.type = current.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND current.sql <> target.sql`); err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, table := range changed {
		if err := db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
		}
	}
	return nil
}

func (db *Database) rebuildTable(ctx context.Context, tx *sqlx.Tx, table tableDiff) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", table.Name),
		slog.String("current_sql", table.CurrentSQL),
		slog.String("target_sql", table.TargetSQL))

	tempName := table.Name + "_migration_temp"
	if _, err := tx.ExecContext(ctx, strings.Replace(table.TargetSQL, table.Name, tempName, 1)); err != nil {
		return errors.Wrap(err, "create temporary table")
	}

	// Quote the column names in case they are keywords.
	var columns []string
	if err := tx.SelectContext(ctx, &columns, `SELECT '"' || target.name || '"'
FROM pragma_table_info(?) AS current
JOIN pragma_table_info(?, 'schema_target') AS target ON target.name = current.name`,
		table.Name, table.Name); err != nil {
		return errors.Wrap(err, "query common columns")
	}
	if len(columns) > 0 {
		common := strings.Join(columns, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", tempName, common, common, table.Name)
		if _, err := tx.ExecContext(ctx, copySQL); err != nil {
			return errors.Wrap(err, "copy rows", slog.String("query", copySQL))
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
		return errors.Wrap(err, "drop old table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, table.Name)); err != nil {
		return errors.Wrap(err, "rename temporary table")
	}
	return nil
}

// createMissingIndexes creates the explicitly declared indexes of the target schema that the live database lacks.
// Indexes of rebuilt tables disappear with the old table and are recreated here.
func (db *Database) createMissingIndexes(ctx context.Context, tx *sqlx.Tx) error {
	var stmts []string
	if err := tx.SelectContext(ctx, &stmts, `SELECT target.sql
FROM schema_target.sqlite_schema AS target
LEFT JOIN main.sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = 'index' AND target.sql IS NOT NULL AND current.name IS NULL`); err != nil {
		return errors.Wrap(err, "query new indexes")
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create index", slog.String("query", stmt))
		}
	}
	return nil
}
