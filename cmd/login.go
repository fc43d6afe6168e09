package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/habedi/reauth/auth"
	"github.com/habedi/reauth/pkg/clierr"
	"github.com/habedi/reauth/pkg/validation"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd stores a token pair obtained from the identity provider.
func loginCmd() *cobra.Command {
	var accessToken, refreshToken string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token and refresh token",
		Long:  "Store an access token and, when refresh is enabled, a refresh token. Missing tokens are prompted for.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateNonNegativeDuration("expires-in", expiresIn); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}

			a, cleanup, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if accessToken == "" {
				if accessToken, err = promptForSecret(cmd, "Access token: "); err != nil {
					return clierr.New(clierr.Validation, "Access token is required (pass --access-token)", err)
				}
			}
			if refreshToken == "" && a.svc.SupportsRefresh() && isTerminal() {
				if refreshToken, err = promptForSecret(cmd, "Refresh token (optional): "); err != nil {
					return clierr.New(clierr.Validation, "Failed to read refresh token", err)
				}
			}
			if err := validation.ValidateNonEmptyString("access token", accessToken); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}

			if err := a.svc.Login(cmd.Context(), auth.TokenPair{
				AccessToken:       accessToken,
				RefreshToken:      refreshToken,
				AccessTokenExpiry: expiresIn,
			}); err != nil {
				return clierr.New(clierr.Internal, "Failed to store tokens", err)
			}

			cmd.Println("Login was successful.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&accessToken, "access-token", "a", "", "Access token to store")
	cmd.Flags().StringVarP(&refreshToken, "refresh-token", "r", "", "Refresh token to store")
	cmd.Flags().DurationVarP(&expiresIn, "expires-in", "e", 0, "Lifetime of the access token, e.g. 10m (0 means no expiry)")

	return cmd
}

// logoutCmd drops both token slots.
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			a.svc.Logout(cmd.Context())
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptForSecret reads a value from the terminal without echoing it.
func promptForSecret(cmd *cobra.Command, prompt string) (string, error) {
	if !isTerminal() {
		return "", fmt.Errorf("standard input is not a terminal")
	}
	cmd.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println() // Print a newline for better formatting
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
