package docstore

import (
	"time"

	"pathak/internal/parikshan"
)

// Documents written by the mobile app are loosely typed, so reads go through
// these helpers instead of DataTo.

func stringField(data map[string]interface{}, name string) string {
	s, _ := data[name].(string)
	return s
}

func boolField(data map[string]interface{}, name string) bool {
	b, _ := data[name].(bool)
	return b
}

// timeField accepts a Firestore timestamp or an ISO-8601 string.
func timeField(data map[string]interface{}, name string) time.Time {
	switch v := data[name].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

// firstTime returns the first of names that holds a time.
func firstTime(data map[string]interface{}, names ...string) time.Time {
	for _, n := range names {
		if t := timeField(data, n); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func scoreField(data map[string]interface{}, name string) parikshan.Score {
	switch v := data[name].(type) {
	case int64:
		return parikshan.Locked(int(v))
	case float64:
		return parikshan.Locked(int(v))
	}
	return parikshan.Score{}
}
