// Package sqlutil quotes identifiers and literals for the MySQL dialect.
package sqlutil

import "strings"

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Qualify renders alias.column with both parts quoted.
func Qualify(alias, column string) string {
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// QuoteString wraps s in single quotes, doubling embedded quotes and
// escaping backslashes.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
