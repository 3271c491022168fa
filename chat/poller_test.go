package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/onnwee/streamctl/alias"
	"github.com/onnwee/streamctl/command"
)

type fakeSource struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeSource) FetchHistoryRaw(ctx context.Context) ([]byte, error) {
	f.calls++
	return f.payload, f.err
}

type emitted struct {
	author string
	text   string
}

func snapshotJSON(t *testing.T, entries []map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"code":    0,
		"message": "0",
		"data": map[string]interface{}{
			"admin": []map[string]interface{}{},
			"room":  entries,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func entry(nick string, uid int64, text string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"nickname": nick,
		"uid":      uid,
		"text":     text,
		"timeline": at.In(time.Local).Format(biliTimeLayout),
	}
}

func newTestPoller(src HistorySource, now time.Time, sink *[]emitted) *Poller {
	return &Poller{
		Source:  src,
		Room:    "92613",
		Prefix:  "!",
		Aliases: alias.Table{"跳": "jump"},
		Now:     func() time.Time { return now },
		OnFreshMessage: func(author, text string) {
			*sink = append(*sink, emitted{author: author, text: text})
		},
		OnClientError: func(string) {},
	}
}

func TestPoller_EmitsFreshMessagesInOrder(t *testing.T) {
	now := time.Now()
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("ann", 7, "!jump", now),
		entry("bob", 8, "hello", now),
		entry("cat", 9, "!跳", now),
	})}
	var got []emitted
	p := newTestPoller(src, now, &got)

	p.pollOnce(context.Background())

	want := []emitted{
		{author: "ann", text: "!jump"},
		{author: "bob", text: "hello"},
		{author: "cat", text: "!jump"},
	}
	if len(got) != len(want) {
		t.Fatalf("emitted %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("emitted[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPoller_SecondPollOfSameSnapshotEmitsNothing(t *testing.T) {
	now := time.Now()
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("ann", 7, "!jump", now),
		entry("bob", 8, "!heal", now),
	})}
	var got []emitted
	p := newTestPoller(src, now, &got)

	p.pollOnce(context.Background())
	if len(got) != 2 {
		t.Fatalf("first poll emitted %d, want 2", len(got))
	}
	p.pollOnce(context.Background())
	if len(got) != 2 {
		t.Fatalf("second poll of identical snapshot emitted %d extra messages, want 0", len(got)-2)
	}
}

func TestPoller_StaleEntriesRecordedButNotEmitted(t *testing.T) {
	now := time.Now()
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("old", 5, "!jump", now.Add(-60*time.Second)),
		entry("ann", 7, "!jump", now),
	})}
	var got []emitted
	p := newTestPoller(src, now, &got)

	p.pollOnce(context.Background())

	if len(got) != 1 || got[0].author != "ann" {
		t.Fatalf("emitted = %+v, want only ann's message", got)
	}
	// The stale entry is still in the backlog for dedup...
	if p.BacklogLen() != 2 {
		t.Errorf("BacklogLen() = %d, want 2", p.BacklogLen())
	}
	// ...and its author was recorded in the user directory.
	if uid, ok := p.UID("old"); !ok || uid != 5 {
		t.Errorf("UID(old) = %d,%v, want 5,true", uid, ok)
	}
}

func TestPoller_BoundaryStalenessIsFresh(t *testing.T) {
	// biliTimeLayout has one-second resolution, so a fractional now would make
	// the formatted entry appear older than exactly StaleAfter.
	now := time.Now().Truncate(time.Second)
	// Exactly at the threshold is not yet stale.
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("edge", 6, "!jump", now.Add(-30*time.Second)),
	})}
	var got []emitted
	p := newTestPoller(src, now, &got)
	p.pollOnce(context.Background())
	if len(got) != 1 {
		t.Fatalf("emitted %d messages, want 1", len(got))
	}
}

func TestPoller_FirstSeenIdentityWins(t *testing.T) {
	now := time.Now()
	var got []emitted
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("ann", 7, "first", now),
	})}
	p := newTestPoller(src, now, &got)
	p.pollOnce(context.Background())

	src.payload = snapshotJSON(t, []map[string]interface{}{
		entry("ann", 99, "second", now),
	})
	p.pollOnce(context.Background())

	if uid, ok := p.UID("ann"); !ok || uid != 7 {
		t.Fatalf("UID(ann) = %d,%v, want first-seen 7,true", uid, ok)
	}
}

func TestPoller_FetchErrorReportedAndLoopContinues(t *testing.T) {
	now := time.Now()
	src := &fakeSource{err: errors.New("connection refused")}
	var errs []string
	p := &Poller{
		Source:        src,
		Prefix:        "!",
		Now:           func() time.Time { return now },
		OnClientError: func(msg string) { errs = append(errs, msg) },
	}

	p.pollOnce(context.Background())
	if len(errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs))
	}

	// Recovery: a later successful poll still emits.
	var got []emitted
	p.OnFreshMessage = func(author, text string) { got = append(got, emitted{author, text}) }
	src.err = nil
	src.payload = snapshotJSON(t, []map[string]interface{}{entry("ann", 7, "!jump", now)})
	p.pollOnce(context.Background())
	if len(got) != 1 {
		t.Fatalf("emitted %d messages after recovery, want 1", len(got))
	}
}

func TestPoller_MalformedPayloadReported(t *testing.T) {
	now := time.Now()
	var errs []string
	p := &Poller{
		Source:        &fakeSource{payload: []byte(`{"code":0,"data":{`)},
		Prefix:        "!",
		Now:           func() time.Time { return now },
		OnClientError: func(msg string) { errs = append(errs, msg) },
	}
	p.pollOnce(context.Background())
	if len(errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs))
	}
}

func TestPoller_RawPayloadCallback(t *testing.T) {
	now := time.Now()
	payload := snapshotJSON(t, nil)
	var raws [][]byte
	p := &Poller{
		Source:       &fakeSource{payload: payload},
		Prefix:       "!",
		Now:          func() time.Time { return now },
		OnRawPayload: func(raw []byte) { raws = append(raws, raw) },
	}
	p.pollOnce(context.Background())
	if len(raws) != 1 || string(raws[0]) != string(payload) {
		t.Fatal("OnRawPayload did not receive the fetched body")
	}
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{payload: snapshotJSON(t, nil)}
	p := &Poller{Source: src, Prefix: "!", Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if src.calls == 0 {
		t.Error("poller never fetched")
	}
}

type captureStore struct {
	rooms   []string
	authors []string
}

func (c *captureStore) RecordMessage(ctx context.Context, room, author string, uid int64, text, postedAt string) error {
	c.rooms = append(c.rooms, room)
	c.authors = append(c.authors, author)
	return nil
}

func TestPoller_StoreReceivesFreshMessagesOnly(t *testing.T) {
	now := time.Now()
	store := &captureStore{}
	var got []emitted
	p := newTestPoller(&fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("old", 5, "ancient", now.Add(-5*time.Minute)),
		entry("ann", 7, "!jump", now),
	})}, now, &got)
	p.Store = store

	p.pollOnce(context.Background())

	if len(store.authors) != 1 || store.authors[0] != "ann" {
		t.Fatalf("store recorded %v, want only ann", store.authors)
	}
	if store.rooms[0] != "92613" {
		t.Errorf("store room = %s, want 92613", store.rooms[0])
	}
}

func TestPoller_DispatchesCommandEndToEnd(t *testing.T) {
	now := time.Now()
	src := &fakeSource{payload: snapshotJSON(t, []map[string]interface{}{
		entry("ann", 7, "!jump", now),
	})}

	var invocations []command.Invocation
	reg, err := command.NewRegistry(command.Command{
		Name: "jump",
		Handler: func(ctx context.Context, inv command.Invocation) error {
			invocations = append(invocations, inv)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	dispatcher := &command.Dispatcher{
		Prefix:   "!",
		Registry: reg,
		Tracker:  command.NewTracker(reg),
		Policy:   command.NewPolicy(nil, nil, nil),
	}

	p := &Poller{
		Source: src,
		Room:   "92613",
		Prefix: "!",
		Now:    func() time.Time { return now },
		OnFreshMessage: func(author, text string) {
			dispatcher.Handle(context.Background(), author, text)
		},
	}
	p.pollOnce(context.Background())

	if len(invocations) != 1 {
		t.Fatalf("handler invoked %d times, want 1", len(invocations))
	}
	inv := invocations[0]
	if inv.Caller != "ann" || inv.Admin || len(inv.Args) != 0 {
		t.Errorf("invocation = %+v, want caller ann, admin false, no args", inv)
	}
}

func TestPoller_BacklogLenConcurrentWithPolling(t *testing.T) {
	payloads := make([][]byte, 20)
	for i := range payloads {
		now := time.Now()
		payloads[i] = snapshotJSON(t, []map[string]interface{}{
			entry(fmt.Sprintf("user%d", i), int64(i), fmt.Sprintf("!msg%d", i), now),
		})
	}
	src := &fakeSource{}
	var got []emitted
	p := newTestPoller(src, time.Now(), &got)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, payload := range payloads {
			src.payload = payload
			p.pollOnce(context.Background())
		}
	}()

	// Status-surface reads race the poll goroutine unless the length is
	// published safely.
	for {
		select {
		case <-done:
			if n := p.BacklogLen(); n != len(payloads) {
				t.Errorf("BacklogLen() = %d after all polls, want %d", n, len(payloads))
			}
			return
		default:
			if n := p.BacklogLen(); n < 0 || n > len(payloads) {
				t.Fatalf("BacklogLen() = %d, want within [0, %d]", n, len(payloads))
			}
		}
	}
}
