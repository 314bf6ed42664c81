package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/csai/ctf-client/internal/tui"
)

var (
	configFile string
	styles     = tui.NewStyles(tui.Renderer)
)

var rootCmd = &cobra.Command{
	Use:           "ctf-client",
	Short:         "Browse CTF challenges and manage challenge instances",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Long = styles.Title.Render("ctf-client") + "\n" +
		styles.Dim.Render("Browse challenges, submit flags and start, watch and stop per-team challenge instances.")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $CTF_CLIENT_CONFIG_FILE)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintln(os.Stderr, styles.Error.Render("error: ")+err.Error())
		}
		stop()
		os.Exit(1)
	}
}

// errSilent fails the command without printing; the user was already told.
var errSilent = errors.New("silent failure")
