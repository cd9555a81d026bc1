package commands

import (
	"database/sql"
	"fmt"
	"strings"
)

// maskDatabaseURL hides credentials in a database URL for log output
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := ""
	if i := strings.Index(url, "://"); i >= 0 {
		scheme = url[:i+3]
	}
	return scheme + "***:***" + url[at:]
}

// getDatabaseInfo describes the current connection for diagnostics
func getDatabaseInfo(db *sql.DB) string {
	if db == nil {
		return "not connected"
	}

	var dbName, host sql.NullString
	err := db.QueryRow("SELECT current_database(), inet_server_addr()::text").Scan(&dbName, &host)
	if err != nil || !dbName.Valid {
		return "connected (unknown database)"
	}
	if !host.Valid {
		return fmt.Sprintf("connected to %s", dbName.String)
	}
	return fmt.Sprintf("connected to %s on %s", dbName.String, host.String)
}
