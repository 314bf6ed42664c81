package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csai/ctf-client/internal/challenges"
	"github.com/csai/ctf-client/internal/lifecycle"
	"github.com/csai/ctf-client/internal/tui"
)

func init() {
	challengesCmd.AddCommand(challengesListCmd)
	challengesCmd.AddCommand(challengesShowCmd)
	challengesCmd.AddCommand(challengesSubmitCmd)
	rootCmd.AddCommand(challengesCmd)
}

var challengesCmd = &cobra.Command{
	Use:     "challenges",
	Aliases: []string{"ch"},
	Short:   "Browse challenges and submit flags",
}

var challengesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List challenges with solve state and running instances",
	Args:  cobra.NoArgs,
	RunE: withApp(false, func(ctx context.Context, a *app, _ []string) error {
		if err := challenges.Refresh(ctx, a.api, a.store); err != nil {
			return err
		}
		now := a.clock.Now()
		for _, c := range a.store.List() {
			mark := styles.Dim.Render("  ")
			if c.Solved {
				mark = styles.Solved.Render("✓ ")
			}
			line := fmt.Sprintf("%s%-5d %-32s %-12s %5d", mark, c.ID, c.Name, c.Category, c.Value)
			if badge := tui.Badge(c, now); badge != "" {
				line += "  " + styles.Countdown.Render(badge)
			}
			fmt.Println(line)
		}
		return nil
	}),
}

var challengesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one challenge and its instance",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(false, func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := a.challenge(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(styles.Title.Render(c.Name) + " " + styles.Dim.Render(fmt.Sprintf("[%s] %d points, %d solves", c.Category, c.Value, c.Solves)))
		if c.Solved {
			fmt.Println(styles.Solved.Render("solved"))
		}
		if d := strings.TrimSpace(c.Description); d != "" {
			fmt.Println()
			fmt.Println(d)
		}
		if panel := tui.Render(tui.View{State: seededState(a, c)}, styles); panel != "" {
			fmt.Println()
			fmt.Println(panel)
		}
		return nil
	}),
}

var challengesSubmitCmd = &cobra.Command{
	Use:   "submit <id> <flag>",
	Short: "Submit a flag",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(false, func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := a.api.Attempt(ctx, id, args[1])
		if err != nil {
			return err
		}
		a.metrics.IncFlagAttempt(string(res.Status))
		switch res.Status {
		case challenges.AttemptCorrect, challenges.AttemptAlreadySolved:
			a.store.UpdateChallenge(id, challenges.Patch{Solved: challenges.Bool(true)})
			fmt.Println(styles.Solved.Render(messageOr(res.Message, "Correct")))
		default:
			fmt.Println(styles.Error.Render(messageOr(res.Message, string(res.Status))))
		}
		return nil
	}),
}

// seededState is what a freshly mounted controller would show for c.
func seededState(a *app, c challenges.Challenge) lifecycle.State {
	ctrl := lifecycle.New(c, nil, nil, lifecycle.WithClock(a.clock))
	defer ctrl.Close()
	return ctrl.State()
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid challenge id %q", s)
	}
	return id, nil
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
