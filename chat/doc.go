// Package chat contains the chat ingestion pipeline: the history poller, the
// text normalizer, and the dedup backlog.
//
// It provides two chat sources:
//   - Poller: polls the Bilibili recent-history endpoint on a fixed interval,
//     deduplicates entries against a bounded backlog, suppresses stale history,
//     and emits fresh messages in snapshot order to a single consumer.
//   - StartTwitchSource: connects to Twitch IRC and forwards private messages
//     through the same normalizer and fresh-message callback.
//
// The history endpoint resends a moving window on every poll, so correctness
// rests on idempotent absorption: an entry already present in the backlog is
// never re-emitted, and entries older than the staleness threshold are recorded
// for dedup but never dispatched. A process hosts at most one source.
package chat
