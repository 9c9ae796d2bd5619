package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/notify"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Manage authentication with the sync server.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the sync server",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout from the sync server",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account on the sync server",
	RunE:  runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	RunE:  runStatus,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().String("email", "", "Login using magic link for this email")
	loginCmd.Flags().String("token", "", "Verify magic link token")
}

// openAuth opens the app without waiting for a session
func openAuth() (*app, error) {
	return openApp(notify.Log{})
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openAuth()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	// Check for magic link flags
	email, _ := cmd.Flags().GetString("email")
	token, _ := cmd.Flags().GetString("token")

	if token != "" {
		fmt.Printf("🔄 Verifying magic link token...\n")
		if err := a.provider.VerifyMagicLink(ctx, token); err != nil {
			return err
		}
		return printSignedIn(a.provider)
	}

	reader := bufio.NewReader(os.Stdin)

	if email != "" {
		fmt.Printf("🔄 Requesting magic link for %s...\n", email)
		token, err := a.provider.RequestMagicLink(ctx, email)
		if err != nil {
			return err
		}
		fmt.Println("📬 Magic link requested! Check your email (or server logs in dev).")
		if token != "" {
			fmt.Printf("🔑 Development Token: %s\n", token)
		}

		inputToken := prompt(reader, "Enter Magic Link Token: ")
		if inputToken == "" {
			return fmt.Errorf("token required")
		}

		fmt.Printf("🔄 Verifying magic link...\n")
		if err := a.provider.VerifyMagicLink(ctx, inputToken); err != nil {
			return err
		}
		return printSignedIn(a.provider)
	}

	// Normal password login
	username := prompt(reader, "Username: ")
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	fmt.Println("🔄 Logging in...")
	if err := a.provider.SignIn(ctx, username, password); err != nil {
		return err
	}
	return printSignedIn(a.provider)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openAuth()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("🔄 Logging out...")
	if err := a.provider.SignOut(cmd.Context()); err != nil {
		if errors.Is(err, auth.ErrNotSignedIn) {
			fmt.Println("Not logged in.")
			return nil
		}
		return err
	}

	fmt.Println("✅ Logged out successfully.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := openAuth()
	if err != nil {
		return err
	}
	defer a.close()

	reader := bufio.NewReader(os.Stdin)
	username := prompt(reader, "Username: ")
	email := prompt(reader, "Email: ")

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm Password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	if err := a.provider.SignUp(cmd.Context(), username, email, password); err != nil {
		return err
	}

	fmt.Println("✅ Account created and logged in!")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openAuth()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("Server:  %s\n", a.client.ServerURL())

	if err := a.provider.Restore(cmd.Context()); err != nil {
		fmt.Printf("Status:  %v\n", err)
		return nil
	}
	id := a.provider.Current()
	if id == nil {
		fmt.Println("Status:  not logged in")
		return nil
	}

	fmt.Printf("User:    %s", id.Username)
	if id.Email != "" {
		fmt.Printf(" <%s>", id.Email)
	}
	fmt.Println()
	if s := a.client.Session(); s != nil && !s.ExpiresAt.IsZero() {
		fmt.Printf("Expires: %s\n", s.ExpiresAt.Local().Format("Jan 2 2006 15:04"))
	}
	return nil
}

func printSignedIn(p *auth.Provider) error {
	id := p.Current()
	if id == nil {
		return errNotSignedIn
	}
	fmt.Printf("✅ Logged in as %s\n", id.Username)
	return nil
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func readPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
