package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/config"
	"github.com/Tiliavir/timereg/internal/msgraph"
)

var authToken string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API bearer token in the OS keyring",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the API token and the Outlook sign-in",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	authLoginCmd.Flags().StringVar(&authToken, "token", "", "Token to store (prompted when omitted)")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(authToken)
	if token == "" {
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("API token").
					Description(cfg.API.BaseURL).
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("token cannot be empty")
						}
						return nil
					}),
			),
		).WithTheme(huh.ThemeDracula()).Run()
		if err != nil {
			return err
		}
		token = strings.TrimSpace(token)
	}

	if err := config.SetToken(token); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println(successStyle.Render("Token stored in the OS keyring."))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	err := config.DeleteToken()
	switch {
	case errors.Is(err, config.ErrTokenNotFound):
		fmt.Println("No API token stored.")
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Println("API token removed.")
	}

	if err := msgraph.Logout(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println("Outlook sign-in removed.")
	return nil
}
