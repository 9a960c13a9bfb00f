package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/api"
	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/directory"
	"github.com/beingharisali/martchat/internal/messagelog"
	"github.com/beingharisali/martchat/internal/session"
	"github.com/beingharisali/martchat/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		session.Module(session.Params{Profile: profile}),
		fx.Provide(newApp),
		fx.Invoke(run),
	)

	app.Run()
}

func newApp(p session.Params, dir *directory.Store, log *messagelog.Log, b *bus.Bus, client *api.Client) *tui.App {
	return tui.NewApp(dir, log, b, client, p.Profile)
}

// run blocks in the TUI and shuts the whole fx app down when it exits.
func run(lc fx.Lifecycle, app *tui.App, shutdowner fx.Shutdowner, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			return nil
		},
	})
}
