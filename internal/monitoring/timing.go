package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// TimingReport accumulates per-call durations across concurrent cluster
// collections. All methods are safe for concurrent use.
type TimingReport struct {
	mu      sync.Mutex
	entries []TimingEntry
}

// TimingEntry is one timed remote read.
type TimingEntry struct {
	Profile  string
	Call     string
	Duration time.Duration
}

func NewTimingReport() *TimingReport {
	return &TimingReport{}
}

// Record appends one measurement.
func (t *TimingReport) Record(profile, call string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TimingEntry{Profile: profile, Call: call, Duration: duration})
}

// Entries returns a copy of the recorded measurements.
func (t *TimingReport) Entries() []TimingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimingEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// String renders the report sorted slowest-first, with per-cluster wall
// totals at the end.
func (t *TimingReport) String() string {
	entries := t.Entries()
	if len(entries) == 0 {
		return "no timing data recorded\n"
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Duration > entries[j].Duration
	})

	totals := make(map[string]time.Duration)
	profiles := make([]string, 0)
	for _, entry := range entries {
		if _, seen := totals[entry.Profile]; !seen {
			profiles = append(profiles, entry.Profile)
		}
		totals[entry.Profile] += entry.Duration
	}
	sort.Strings(profiles)

	var b strings.Builder
	b.WriteString("API call timing (slowest first):\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "  %8s ms  %s  %s\n", formatMillis(entry.Duration), entry.Profile, entry.Call)
	}
	b.WriteString("Per-cluster totals:\n")
	for _, profile := range profiles {
		fmt.Fprintf(&b, "  %8s ms  %s\n", formatMillis(totals[profile]), profile)
	}
	return b.String()
}

// formatMillis renders a duration in whole milliseconds with thousands
// separators.
func formatMillis(d time.Duration) string {
	ms := d.Milliseconds()
	s := fmt.Sprintf("%d", ms)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
