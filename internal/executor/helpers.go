package executor

import (
	"database/sql"
	"encoding/json"
	"time"
)

func sqlNullTimeNow() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

func sqlNullStringOf(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func sqlNullInt32(v int32) sql.NullInt32 {
	return sql.NullInt32{Int32: v, Valid: true}
}

func errDetails(reason, message string) []byte {
	b, _ := json.Marshal(map[string]string{"reason": reason, "message": message})
	return b
}
