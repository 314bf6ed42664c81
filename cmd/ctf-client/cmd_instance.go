package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/lifecycle"
	"github.com/csai/ctf-client/internal/tui"
)

func init() {
	instanceCmd.AddCommand(instanceStartCmd)
	instanceCmd.AddCommand(instanceStopCmd)
	instanceCmd.AddCommand(instanceWatchCmd)
	rootCmd.AddCommand(instanceCmd)
}

var instanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"inst"},
	Short:   "Start, stop and watch challenge instances",
}

var instanceStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start the instance of a challenge",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(false, func(ctx context.Context, a *app, args []string) error {
		return runInstanceOp(ctx, a, args[0], (*lifecycle.Controller).Start)
	}),
}

var instanceStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop the instance of a challenge",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(false, func(ctx context.Context, a *app, args []string) error {
		return runInstanceOp(ctx, a, args[0], (*lifecycle.Controller).Stop)
	}),
}

var instanceWatchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Interactively watch, start and stop an instance",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(true, func(ctx context.Context, a *app, args []string) error {
		var id int
		if len(args) == 1 {
			var err error
			if id, err = parseID(args[0]); err != nil {
				return err
			}
		} else {
			if err := challenges.Refresh(ctx, a.api, a.store); err != nil {
				return err
			}
			var err error
			if id, err = tui.PickChallenge(a.store.List(), a.clock.Now()); err != nil {
				return err
			}
		}
		return watch(ctx, a, id)
	}),
}

func runInstanceOp(ctx context.Context, a *app, rawID string, op func(*lifecycle.Controller, context.Context) error) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	c, err := a.challenge(ctx, id)
	if err != nil {
		return err
	}
	if !c.Instanced {
		return fmt.Errorf("challenge %d has no instance", id)
	}
	ctrl := a.controller(c, lifecycle.NotifierFunc(func(n lifecycle.Notice) {
		fmt.Fprintln(os.Stderr, styles.Error.Render(n.Message))
	}))
	defer ctrl.Close()

	if err := op(ctrl, ctx); err != nil {
		// already reported through the notifier
		return errSilent
	}
	fmt.Println(tui.Render(tui.View{State: ctrl.State()}, styles))
	return nil
}

func watch(ctx context.Context, a *app, id int) error {
	c, err := a.challenge(ctx, id)
	if err != nil {
		return err
	}
	bridge := &tui.Bridge{}
	ctrl := a.controller(c, bridge)
	defer ctrl.Close()
	cancel := ctrl.Subscribe(bridge.Publish)
	defer cancel()

	model := tui.NewModel(ctx, c, ctrl, tui.Options{
		Styles:        styles,
		ToastFor:      time.Duration(a.cfg.UI.ToastSeconds) * time.Second,
		EllipsisEvery: time.Duration(a.cfg.UI.EllipsisMillis) * time.Millisecond,
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))
	bridge.Attach(p)
	a.logger.Info("watch_started", slog.Int("challenge_id", id))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
