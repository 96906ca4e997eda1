package message

import (
	"encoding/base64"
	"time"
)

// EncodeCursor returns base64 of the RFC 3339 representation of t in UTC.
// Fractional seconds are kept so the cursor matches the stored timestamp exactly.
func EncodeCursor(t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

// DecodeCursor reverses EncodeCursor
func DecodeCursor(cursor string) (time.Time, error) {
	b, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, err
	}

	return time.Parse(time.RFC3339Nano, string(b))
}
