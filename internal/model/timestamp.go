package model

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// naiveLayout はタイムゾーンを持たない日時の形式。バックエンドはUTCをこの形式で返すことがある。
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp はバックエンドが返す日時。
// RFC 3339 に加えてタイムゾーンなしの形式も受け付け、後者はUTCとして読む。
type Timestamp struct {
	time.Time
}

// NewTimestamp はtをTimestampにする。
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON はjson.Unmarshalerを実装する。nullはゼロ値のままにする。
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %s", data)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// ParseTimestamp はRFC 3339またはタイムゾーンなしの日時文字列を解析する。
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
