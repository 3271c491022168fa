package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onnwee/streamctl/alias"
	"github.com/onnwee/streamctl/biliapi"
	"github.com/onnwee/streamctl/telemetry"
)

// biliTimeLayout matches the `timeline` field of history entries.
const biliTimeLayout = "2006-01-02 15:04:05"

// HistorySource fetches one raw chat-history snapshot. *biliapi.Client satisfies it.
type HistorySource interface {
	FetchHistoryRaw(ctx context.Context) ([]byte, error)
}

// MessageStore persists fresh messages. Implementations must tolerate being
// called once per emitted message on the poller goroutine.
type MessageStore interface {
	RecordMessage(ctx context.Context, room string, author string, uid int64, text string, postedAt string) error
}

// Poller repeatedly fetches the chat history snapshot, absorbs it into the
// backlog, and emits fresh messages. All fields must be set before Run; the
// backlog and user directory are owned by the Run goroutine and the callbacks
// are invoked synchronously on it, serializing all message processing.
type Poller struct {
	Source     HistorySource
	Room       string
	Prefix     string
	Aliases    alias.Table
	Interval   time.Duration // defaults to 1s
	StaleAfter time.Duration // defaults to 30s
	Store      MessageStore  // optional persistence sink

	// Callbacks. OnFreshMessage receives (author, normalized text) for every
	// newly arrived non-stale entry, in snapshot order. OnClientError receives
	// a description of any fetch or parse failure. OnRawPayload receives the
	// undecoded snapshot body before parsing.
	OnFreshMessage func(author, text string)
	OnClientError  func(msg string)
	OnRawPayload   func(raw []byte)

	// Now is a clock hook for tests; defaults to time.Now.
	Now func() time.Time

	backlog *Backlog
	users   map[string]int64

	// backlogLen mirrors the backlog length for readers outside the poller
	// goroutine (the status surface).
	backlogLen atomic.Int64
}

func (p *Poller) init() {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = 30 * time.Second
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.backlog == nil {
		p.backlog = NewBacklog()
	}
	if p.users == nil {
		p.users = make(map[string]int64)
	}
}

// Run blocks until ctx is canceled, polling every Interval. Fetch and parse
// failures are reported through OnClientError and never terminate the loop;
// the poller is the single always-on input source for the process.
func (p *Poller) Run(ctx context.Context) {
	p.init()
	slog.Info("chat poller started", slog.String("room", p.Room), slog.Duration("interval", p.Interval))
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("chat poller stopped", slog.String("room", p.Room))
			return
		case <-ticker.C:
		}
		p.pollOnce(ctx)
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	p.init()
	ctx, span := telemetry.StartSpan(ctx, "chat", "poll_cycle")
	defer span.End()

	if telemetry.PollCycles != nil {
		telemetry.PollCycles.Inc()
	}

	var raw []byte
	var err error
	telemetry.TimeFunc(telemetry.FetchDuration, func() {
		raw, err = p.Source.FetchHistoryRaw(ctx)
	})
	if err != nil {
		p.reportError("error occurred trying to read stream: " + err.Error())
		telemetry.RecordError(span, err)
		return
	}
	if p.OnRawPayload != nil {
		p.OnRawPayload(raw)
	}

	snap, err := biliapi.ParseSnapshot(raw)
	if err != nil {
		p.reportError("malformed history payload: " + err.Error())
		telemetry.RecordError(span, err)
		return
	}

	p.absorb(ctx, snap)
	telemetry.SetSpanSuccess(span)
}

// absorb folds one decoded snapshot into the backlog, emitting fresh messages.
func (p *Poller) absorb(ctx context.Context, snap *biliapi.Snapshot) {
	now := p.Now()
	for _, e := range snap.Room {
		if telemetry.MessagesSeen != nil {
			telemetry.MessagesSeen.Inc()
		}
		m := Message{
			Author:    e.Nickname,
			Timestamp: e.Timeline,
			Text:      Normalize(e.Text, p.Prefix, p.Aliases),
		}
		if p.backlog.Seen(m) {
			if telemetry.DuplicatesSkipped != nil {
				telemetry.DuplicatesSkipped.Inc()
			}
			continue
		}
		p.backlog.Add(m)
		// First identity observed for a display name wins; never overwritten.
		if _, ok := p.users[m.Author]; !ok && m.Author != "" {
			p.users[m.Author] = e.UID
		}
		if p.stale(m.Timestamp, now) {
			if telemetry.StaleSkipped != nil {
				telemetry.StaleSkipped.Inc()
			}
			continue
		}
		if telemetry.FreshEmitted != nil {
			telemetry.FreshEmitted.Inc()
		}
		if p.Store != nil {
			if err := p.Store.RecordMessage(ctx, p.Room, m.Author, e.UID, m.Text, m.Timestamp); err != nil {
				slog.Error("failed to record chat message", slog.Any("err", err))
			}
		}
		if p.OnFreshMessage != nil {
			p.OnFreshMessage(m.Author, m.Text)
		}
	}
	if p.backlog.TrimIfNeeded() {
		slog.Debug("backlog trimmed", slog.Int("len", p.backlog.Len()))
	}
	p.backlogLen.Store(int64(p.backlog.Len()))
	telemetry.SetBacklogSize(p.backlog.Len())
}

// stale reports whether ts is older than the staleness threshold. Timestamps
// the source emits that we cannot parse are treated as fresh.
func (p *Poller) stale(ts string, now time.Time) bool {
	t, err := time.ParseInLocation(biliTimeLayout, ts, time.Local)
	if err != nil {
		slog.Debug("unparsable entry timestamp", slog.String("timeline", ts))
		return false
	}
	return now.Sub(t) > p.StaleAfter
}

// UID returns the first-seen numeric identity for an author, if any. It must
// only be called from the poller goroutine (including dispatch callbacks).
func (p *Poller) UID(author string) (int64, bool) {
	uid, ok := p.users[author]
	return uid, ok
}

// BacklogLen returns the backlog length as of the last completed poll. Unlike
// the backlog itself, this is safe to call from any goroutine.
func (p *Poller) BacklogLen() int {
	return int(p.backlogLen.Load())
}

func (p *Poller) reportError(msg string) {
	if telemetry.FetchErrors != nil {
		telemetry.FetchErrors.Inc()
	}
	if p.OnClientError != nil {
		p.OnClientError(msg)
		return
	}
	slog.Warn("chat poller error", slog.String("msg", msg))
}
