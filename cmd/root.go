package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	err := newRootCmd(app).ExecuteContext(ctx)
	return errors.Join(err, app.close())
}

func newRootCmd(app *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "penphin",
		Short:         "PenphinMind: talk to on-device language model minds",
		Long:          "penphin drives one or more small language model devices (minds) over TCP, serial or websocket links, keeps one connection per mind, and streams their replies to the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return app.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (default ~/.penphin/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newMindsCmd(app),
		newSwitchCmd(app),
		newAskCmd(app),
		newChatCmd(app),
		newConnectCmd(app),
		newStatusCmd(app),
		newAuthCmd(app),
		newSimulateCmd(app),
	)

	return rootCmd
}
