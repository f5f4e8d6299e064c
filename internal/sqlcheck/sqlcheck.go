// Package sqlcheck verifies generated WHERE conditions with the PostgreSQL
// parser.
package sqlcheck

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// ErrEmptyCondition is returned for an empty condition.
var ErrEmptyCondition = errors.New("sqlcheck: empty condition")

// Where checks that condition parses as a single boolean expression of a
// WHERE clause. The condition is embedded as `WHERE TRUE AND (<condition>)`,
// so a condition that closes the parenthesis, comments out the rest of the
// query or appends another statement is rejected.
func Where(condition string) error {
	if condition == "" {
		return ErrEmptyCondition
	}

	tree, err := pg_query.Parse("SELECT 1 FROM t WHERE TRUE AND (" + condition + ")")
	if err != nil {
		return fmt.Errorf("sqlcheck: %w", err)
	}

	stmts := tree.GetStmts()
	if len(stmts) != 1 {
		return fmt.Errorf("sqlcheck: expected 1 statement, got %d", len(stmts))
	}
	sel := stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return fmt.Errorf("sqlcheck: expected a SELECT statement")
	}
	if n := len(sel.GetFromClause()); n != 1 {
		return fmt.Errorf("sqlcheck: expected 1 FROM item, got %d", n)
	}

	where := sel.GetWhereClause().GetBoolExpr()
	if where == nil || where.GetBoolop() != pg_query.BoolExprType_AND_EXPR {
		return fmt.Errorf("sqlcheck: condition is not a single expression")
	}
	if n := len(where.GetArgs()); n != 2 {
		return fmt.Errorf("sqlcheck: condition is not a single expression (%d AND arguments)", n)
	}
	return nil
}

// Fingerprint returns the pg_query fingerprint of a WHERE condition. Two
// conditions that differ only in their literal values share a fingerprint.
func Fingerprint(condition string) (string, error) {
	if err := Where(condition); err != nil {
		return "", err
	}
	return pg_query.Fingerprint("SELECT 1 FROM t WHERE " + condition)
}
