package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
)

var historyUser string

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect or replace the knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the knowledge base as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := api.ListKnowledge(cmd.Context())
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string][]knowledge.Item{"items": items})
	},
}

var kbSetCmd = &cobra.Command{
	Use:   "set [file.yaml]",
	Short: "Replace the knowledge base with the items in a YAML file",
	Long: `Replaces the whole knowledge base. The file uses the same layout
"kb list" prints:

  items:
    - topic: Order Tracking
      content: You can track your order on the portal.
      buttonName: Track Order
      buttonUrl: https://shop.example/track

Connected widgets refresh immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAdmin(cmd); err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		items, err := knowledge.Parse(raw)
		if err != nil {
			return err
		}
		if err := api.ReplaceKnowledge(cmd.Context(), items); err != nil {
			return fmt.Errorf("replace knowledge base: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "knowledge base replaced with %d items\n", len(items))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show a user's saved sessions (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAdmin(cmd); err != nil {
			return err
		}
		sessions, err := api.ListSessions(cmd.Context(), historyUser)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintf(out, "%s has no saved sessions\n", historyUser)
			return nil
		}
		for _, session := range sessions {
			fmt.Fprintf(out, "== %s (%s, %s)\n", session.Title, session.ID, session.CreatedAt.Local().Format("2006-01-02 15:04"))
			for _, msg := range session.Messages {
				printMessage(out, msg)
			}
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAdmin(cmd); err != nil {
			return err
		}
		users, err := api.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tROLE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Email, u.Name, u.Role)
		}
		return w.Flush()
	},
}

func init() {
	kbCmd.AddCommand(kbListCmd, kbSetCmd)

	for _, cmd := range []*cobra.Command{kbSetCmd, historyCmd, usersCmd} {
		cmd.Flags().StringVar(&email, "email", "", "admin email")
		cmd.Flags().StringVar(&password, "password", "", "admin password")
	}
	historyCmd.Flags().StringVar(&historyUser, "user", "", "user whose sessions to show")
	_ = historyCmd.MarkFlagRequired("user")
}
