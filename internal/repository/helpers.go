package repository

import "strings"

// namedParams turns "a, b, c" into ":a, :b, :c" for sqlx named statements.
func namedParams(columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = ":" + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
