package mappers

import "time"

// utcPtr normalizes driver-returned timestamps, which carry the connection location.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
