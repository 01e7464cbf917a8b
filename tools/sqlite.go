package tools

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/robertftenbosch/parakeet/errors"
	_ "modernc.org/sqlite"
)

// SQLiteTool runs a query against a SQLite database file. Read queries
// run freely; statements that modify data or schema need per-call
// confirmation.
type SQLiteTool struct{}

var sqliteWriteStmt = regexp.MustCompile(`(?i)^\s*(insert|update|delete|drop|create|alter|replace|vacuum|pragma)\b`)

func (t *SQLiteTool) Schema() Schema {
	return Schema{
		Name:        "sqlite_query",
		Description: "Runs a SQL query against a SQLite database file and returns the rows or the affected-row count.",
		Params: []Param{
			{Name: "database", Type: "string", Description: "Path to the SQLite database file", Required: true},
			{Name: "query", Type: "string", Description: "SQL statement to execute", Required: true},
		},
	}
}

func (t *SQLiteTool) Dangerous() bool { return false }

func (t *SQLiteTool) NeedsConfirmation(args map[string]interface{}) (bool, string) {
	query := ArgString(args, "query")
	if sqliteWriteStmt.MatchString(query) {
		return true, query
	}
	return false, ""
}

const sqliteRowLimit = 100

func (t *SQLiteTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	database := ArgString(args, "database")
	query := ArgString(args, "query")

	db, err := sql.Open("sqlite", database)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "could not open database '%s'", database)
	}
	defer db.Close()

	if sqliteWriteStmt.MatchString(query) {
		res, err := db.ExecContext(ctx, query)
		if err != nil {
			return "", errors.WrapKind(err, errors.KindExecution, "query failed")
		}
		affected, _ := res.RowsAffected()
		return fmt.Sprintf("ok, %d row(s) affected", affected), nil
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "query failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "could not read result columns")
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteString("\n")

	count := 0
	values := make([]interface{}, len(cols))
	scanTargets := make([]interface{}, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}
	for rows.Next() {
		if count >= sqliteRowLimit {
			fmt.Fprintf(&b, "(truncated at %d rows)\n", sqliteRowLimit)
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return "", errors.WrapKind(err, errors.KindExecution, "could not scan row")
		}
		fields := make([]string, len(values))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				fields[i] = "NULL"
			case []byte:
				fields[i] = string(val)
			default:
				fields[i] = fmt.Sprintf("%v", val)
			}
		}
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "error reading rows")
	}
	fmt.Fprintf(&b, "%d row(s)", count)
	return b.String(), nil
}
