// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// Qualify returns `alias`.`column`. With an empty alias the bare quoted
// column is returned.
func Qualify(alias, column string) string {
	if alias == "" {
		return QuoteIdentifier(column)
	}
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// AliasedColumn returns `alias`.`column` AS `as`, the form used when a
// hydration query selects association columns alongside the root row.
func AliasedColumn(alias, column, as string) string {
	return Qualify(alias, column) + " AS " + QuoteIdentifier(as)
}
