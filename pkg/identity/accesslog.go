package identity

import (
	"slices"
	"time"
)

// MaxAccessLogEntries bounds the per-identity access history
const MaxAccessLogEntries = 100

// AccessLogEntry records one redemption or session access of a course
type AccessLogEntry struct {
	CourseRef       string    `json:"courseRef"`
	AccessDate      time.Time `json:"accessDate"`
	TokenUsed       string    `json:"tokenUsed,omitempty"`
	ClientIP        string    `json:"clientIp,omitempty"`
	UserAgent       string    `json:"userAgent,omitempty"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
}

// AccessLog is a bounded FIFO of the most recent entries in insertion order
type AccessLog []AccessLogEntry

// Append adds an entry, evicting the oldest ones beyond MaxAccessLogEntries
func (l *AccessLog) Append(e AccessLogEntry) {
	entries := append(*l, e)
	if over := len(entries) - MaxAccessLogEntries; over > 0 {
		entries = slices.Delete(entries, 0, over)
	}
	*l = entries
}

// ForCourse returns entries for courseRef, oldest first
func (l AccessLog) ForCourse(courseRef string) []AccessLogEntry {
	var out []AccessLogEntry
	for _, e := range l {
		if e.CourseRef == courseRef {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy of the log
func (l AccessLog) Clone() AccessLog {
	if l == nil {
		return nil
	}
	out := make(AccessLog, len(l))
	for i, e := range l {
		if e.DurationSeconds != nil {
			d := *e.DurationSeconds
			e.DurationSeconds = &d
		}
		out[i] = e
	}
	return out
}
