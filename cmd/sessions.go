package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/history"
	"github.com/parley-ai/parley/internal/message"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved conversations",
	Long: `List, show, and delete saved conversations.

Examples:
  parley sessions                 # List saved conversations
  parley sessions show <id>       # Print a conversation
  parley sessions delete <id>     # Delete a conversation
  parley --resume <id>            # Continue one in the chat UI`,
	Run: func(cmd *cobra.Command, args []string) {
		store := history.NewStore(config.SessionsDir())
		list, err := store.List()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(list) == 0 {
			fmt.Println("No saved conversations.")
			return
		}
		for _, t := range list {
			fmt.Printf("%s  %-16s %s\n", t.UpdatedAt.Format("2006-01-02 15:04"), t.Provider+"/"+t.Model, t.Summary)
			fmt.Printf("    id: %s\n", t.ID)
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := history.NewStore(config.SessionsDir())
		t, err := store.Load(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("%s (%s/%s)\n\n", t.Summary, t.Provider, t.Model)
		for _, turn := range t.Turns {
			label := "you"
			if turn.Role == message.RoleModel {
				label = "model"
			}
			fmt.Printf("[%s] %s\n\n", label, turn.Text())
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved conversation",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := history.NewStore(config.SessionsDir())
		if err := store.Delete(args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Deleted %s.\n", args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
