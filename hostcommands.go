package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/streamctl/biliapi"
	"github.com/onnwee/streamctl/chat"
	"github.com/onnwee/streamctl/command"
)

// hostCommands declares the command set the host environment executes. The
// handlers here are the binding boundary: they announce the requested effect
// and the host process picks it up; actual game effects are outside this
// service. Each registration carries the declared default cooldown that
// ConfigureCooldowns persists on first run.
func hostCommands(bili *biliapi.Client, poller *chat.Poller) []command.Command {
	announce := func(name string) command.HandlerFunc {
		return func(_ context.Context, inv command.Invocation) error {
			slog.Info("host command requested",
				slog.String("component", "host"),
				slog.String("command", name),
				slog.String("caller", inv.Caller),
				slog.Bool("admin", inv.Admin),
				slog.Any("args", inv.Args))
			return nil
		}
	}

	return []command.Command{
		{
			Name:     "jump",
			Summary:  "Makes the player jump.",
			Cooldown: command.Cooldown{MaxUses: 3, Window: 30 * time.Second},
			Handler:  announce("jump"),
		},
		{
			Name:     "heal",
			Summary:  "Restores one mask of health.",
			Cooldown: command.Cooldown{MaxUses: 1, Window: 60 * time.Second},
			Handler:  announce("heal"),
		},
		{
			Name:     "walk",
			Params:   []string{"direction", "seconds"},
			Summary:  "Forces the player to walk in a direction for a number of seconds.",
			Cooldown: command.Cooldown{MaxUses: 2, Window: 45 * time.Second},
			Handler:  announce("walk"),
		},
		{
			Name:     "bees",
			Summary:  "Rains bees from above.",
			Cooldown: command.Cooldown{MaxUses: 1, Window: 90 * time.Second},
			Handler:  announce("bees"),
		},
		{
			Name:     "invertcamera",
			Summary:  "Flips the camera upside down for a short while.",
			Cooldown: command.Cooldown{MaxUses: 1, Window: 120 * time.Second},
			Handler:  announce("invertcamera"),
		},
		{
			Name:     "bench",
			Summary:  "Teleports the player back to the last bench.",
			Cooldown: command.Cooldown{MaxUses: 1, Window: 180 * time.Second},
			Handler:  announce("bench"),
		},
		{
			Name:    "hwurmpU",
			Summary: "Replaces an on-screen sprite with the caller's avatar.",
			Handler: func(ctx context.Context, inv command.Invocation) error {
				uid, ok := poller.UID(inv.Caller)
				if !ok {
					slog.Debug("no uid recorded for caller", slog.String("caller", inv.Caller))
					return nil
				}
				faceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				url, ok := bili.GetFace(faceCtx, uid)
				if !ok {
					slog.Debug("avatar lookup failed", slog.Int64("uid", uid))
					return nil
				}
				slog.Info("host command requested",
					slog.String("component", "host"),
					slog.String("command", "hwurmpU"),
					slog.String("caller", inv.Caller),
					slog.String("avatar_url", url))
				return nil
			},
		},
	}
}
