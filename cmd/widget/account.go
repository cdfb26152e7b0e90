package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/eddez/backend/internal/model/user"
)

var (
	email    string
	password string
	name     string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := api.Signup(cmd.Context(), email, password, name)
		if err != nil {
			return fmt.Errorf("signup failed: %w", err)
		}
		printUser(cmd, u)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials and show the account role",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := api.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		printUser(cmd, u)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{signupCmd, loginCmd} {
		cmd.Flags().StringVar(&email, "email", "", "account email")
		cmd.Flags().StringVar(&password, "password", "", "account password")
		_ = cmd.MarkFlagRequired("email")
		_ = cmd.MarkFlagRequired("password")
	}
	signupCmd.Flags().StringVar(&name, "name", "", "display name")
}

func printUser(cmd *cobra.Command, u user.User) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> role=%s\n", u.Name, u.Email, u.Role)
}

// requireAdmin 管理命令需要管理员账号登录
func requireAdmin(cmd *cobra.Command) error {
	if email == "" || password == "" {
		return errors.New("admin commands need --email and --password")
	}
	u, err := api.Login(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !u.IsAdmin() {
		return fmt.Errorf("%s is not an admin", u.Email)
	}
	return nil
}
