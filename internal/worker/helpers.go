package worker

import (
	"database/sql"
	"encoding/json"
	"time"
)

func nowValid() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

func sqlNullStringOf(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func errDetailsJSON(reason, message string) []byte {
	b, _ := json.Marshal(map[string]string{"reason": reason, "message": message})
	return b
}
