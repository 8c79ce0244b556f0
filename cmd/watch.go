package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/share"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow a shared session live",
	Long: `Follow a session another terminal is broadcasting with --share.
Completed turns print as they happen; Ctrl+C stops following.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		connCfg := share.DefaultConnConfig()
		if url := config.Get().NATSUrl; url != "" {
			connCfg.URL = url
		}

		follower, err := share.NewFollower(connCfg, args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer follower.Close()

		fmt.Printf("Following session %s (Ctrl+C to stop)\n\n", args[0])

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case event := <-follower.Events():
				switch event.Type {
				case share.EventUserTurn:
					fmt.Printf("[you] %s\n\n", event.Text)
				case share.EventModelTurn:
					fmt.Printf("[%s] %s\n\n", event.Model, event.Text)
				case share.EventSessionEnd:
					fmt.Println("Session ended.")
					return
				}
			case err := <-follower.Errors():
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			case <-sigs:
				return
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
