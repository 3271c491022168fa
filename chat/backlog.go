package chat

// Defaults for the backlog watermarks. The feed is unbounded over a long-running
// stream; once the log grows past the high-water mark the oldest trimCount
// entries are dropped, preserving the relative order of the remainder.
const (
	defaultHighWater = 1000
	defaultTrimCount = 800
)

// Backlog is a bounded, time-ordered record of previously observed messages.
// It is owned exclusively by the poller goroutine and is not safe for
// concurrent use.
type Backlog struct {
	entries []Message
	index   map[Message]int // message -> live count (trim can leave older dupes counted)

	highWater int
	trimCount int
}

// NewBacklog returns a backlog with the default watermarks.
func NewBacklog() *Backlog {
	return NewBacklogWithWatermarks(defaultHighWater, defaultTrimCount)
}

// NewBacklogWithWatermarks returns a backlog that trims the oldest trimCount
// entries whenever the length exceeds highWater.
func NewBacklogWithWatermarks(highWater, trimCount int) *Backlog {
	if highWater <= 0 {
		highWater = defaultHighWater
	}
	if trimCount <= 0 || trimCount > highWater {
		trimCount = defaultTrimCount
	}
	return &Backlog{
		index:     make(map[Message]int),
		highWater: highWater,
		trimCount: trimCount,
	}
}

// Seen reports whether m is already recorded.
func (b *Backlog) Seen(m Message) bool {
	return b.index[m] > 0
}

// Add appends m. Callers check Seen first; Add does not deduplicate.
func (b *Backlog) Add(m Message) {
	b.entries = append(b.entries, m)
	b.index[m]++
}

// Len returns the current number of recorded messages.
func (b *Backlog) Len() int { return len(b.entries) }

// TrimIfNeeded drops the oldest entries once the high-water mark is exceeded.
// It reports whether a trim happened.
func (b *Backlog) TrimIfNeeded() bool {
	if len(b.entries) <= b.highWater {
		return false
	}
	n := b.trimCount
	if n > len(b.entries) {
		n = len(b.entries)
	}
	for _, m := range b.entries[:n] {
		if b.index[m] <= 1 {
			delete(b.index, m)
		} else {
			b.index[m]--
		}
	}
	remaining := make([]Message, len(b.entries)-n)
	copy(remaining, b.entries[n:])
	b.entries = remaining
	return true
}
