package chat

import (
	"context"
	"log/slog"
	"strconv"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/streamctl/alias"
)

// StartTwitchSource connects to Twitch IRC and forwards private messages through
// the normalizer to onFresh. Unlike the polling source, IRC pushes each message
// exactly once, so no backlog or staleness handling is needed here. Blocks until
// ctx is canceled or the connection fails terminally.
func StartTwitchSource(ctx context.Context, channel, username, oauth, prefix string, aliases alias.Table, store MessageStore, onFresh func(author, text string)) {
	if channel == "" || username == "" || oauth == "" {
		slog.Info("twitch creds not set; skipping twitch chat source")
		return
	}
	client := twitch.NewClient(username, oauth)
	client.OnPrivateMessage(twitchMessageHandler(ctx, channel, prefix, aliases, store, onFresh))

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(channel)
	if err := client.Connect(); err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}

// twitchMessageHandler normalizes each private message, persists it, and
// forwards it to the fresh-message callback.
func twitchMessageHandler(ctx context.Context, channel, prefix string, aliases alias.Table, store MessageStore, onFresh func(author, text string)) func(twitch.PrivateMessage) {
	return func(msg twitch.PrivateMessage) {
		text := Normalize(msg.Message, prefix, aliases)
		if store != nil {
			uid, _ := strconv.ParseInt(msg.User.ID, 10, 64)
			ts := msg.Time.UTC().Format(biliTimeLayout)
			if err := store.RecordMessage(ctx, channel, msg.User.Name, uid, text, ts); err != nil {
				slog.Error("failed to record chat message", slog.Any("err", err))
			}
		}
		if onFresh != nil {
			onFresh(msg.User.Name, text)
		}
	}
}
