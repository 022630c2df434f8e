package watch

import (
	"hash/fnv"
	"regexp"
	"strings"
	"time"
)

// DefaultDedupTTL is how long a seen error suppresses repeats.
const DefaultDedupTTL = 5 * time.Minute

// Volatile parts stripped before hashing, so the "same" error repeating
// with a new timestamp or shifted line number still deduplicates.
var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	clockRe     = regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}\b`)
	lineNumRe   = regexp.MustCompile(`:\d+(:\d+)?`)
	hexRe       = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// Deduper remembers recently seen error blocks. Not safe for concurrent
// use; the watcher calls it from one goroutine.
type Deduper struct {
	ttl  time.Duration
	seen map[uint64]time.Time
	now  func() time.Time
}

// NewDeduper builds a deduper with the given suppression window. A zero
// ttl uses DefaultDedupTTL.
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduper{ttl: ttl, seen: make(map[uint64]time.Time), now: time.Now}
}

// Seen reports whether an equivalent block appeared within the TTL, and
// records this one either way.
func (d *Deduper) Seen(block string) bool {
	now := d.now()
	for h, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, h)
		}
	}

	h := fingerprint(block)
	_, dup := d.seen[h]
	d.seen[h] = now
	return dup
}

// fingerprint hashes a block with volatile fields blanked.
func fingerprint(block string) uint64 {
	s := strings.ToLower(strings.TrimSpace(block))
	s = timestampRe.ReplaceAllString(s, "")
	s = clockRe.ReplaceAllString(s, "")
	s = lineNumRe.ReplaceAllString(s, "")
	s = hexRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
