package repository

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// sqliteTimeLayout is how the embedded driver writes time.Time values.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// dbTime scans timestamps from both dialects: Postgres hands back time.Time while
// SQLite may hand back the stored text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case int64:
		t.Time, t.Valid = time.Unix(v, 0), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999 -0700 MST", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

func (t dbTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// now is truncated to microseconds, the precision Postgres keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
