package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC 3339 UTC", `"2025-04-01T09:00:00Z"`, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)},
		{"RFC 3339 オフセット付き", `"2025-04-01T18:00:00+09:00"`, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)},
		{"タイムゾーンなし マイクロ秒", `"2025-04-01T09:00:00.123456"`, time.Date(2025, 4, 1, 9, 0, 0, 123456000, time.UTC)},
		{"タイムゾーンなし 秒まで", `"2025-04-02T10:00:00"`, time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal がエラーを返した: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("got %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestTimestamp_NaiveIsReadAsUTC(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2025-04-01T09:00:00.5"`), &ts); err != nil {
		t.Fatalf("Unmarshal がエラーを返した: %v", err)
	}
	if ts.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", ts.Location())
	}
}

func TestTimestamp_UnmarshalJSON_Invalid(t *testing.T) {
	for _, input := range []string{`"yesterday"`, `12345`, `"2025-04-01"`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(input), &ts); err == nil {
			t.Errorf("%s: エラーを期待したが nil", input)
		}
	}
}

func TestTimestamp_NullAndPointer(t *testing.T) {
	var c Connector
	if err := json.Unmarshal([]byte(`{"id":"gmail","last_synced_at":null}`), &c); err != nil {
		t.Fatalf("Unmarshal がエラーを返した: %v", err)
	}
	if c.LastSyncedAt != nil {
		t.Errorf("null は nil のままであるべき: %v", c.LastSyncedAt)
	}

	var m ChatMessage
	if err := json.Unmarshal([]byte(`{"id":"m1","created_at":null}`), &m); err != nil {
		t.Fatalf("Unmarshal がエラーを返した: %v", err)
	}
	if !m.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", m.CreatedAt)
	}
}

func TestTimestamp_MarshalRoundTrip(t *testing.T) {
	in := Identity{ID: "u1", Email: "a@example.com", CreatedAt: NewTimestamp(time.Date(2025, 4, 1, 9, 0, 0, 123456000, time.UTC))}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal がエラーを返した: %v", err)
	}
	var out Identity
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal がエラーを返した: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt.Time) {
		t.Errorf("CreatedAt = %v, want %v", out.CreatedAt, in.CreatedAt)
	}
}
