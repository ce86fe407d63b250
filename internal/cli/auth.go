package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/client"
	"github.com/raphaelgruber/feelfree-go/internal/service"
	"github.com/spf13/cobra"
)

var (
	authEmail  string
	checkLabel = map[bool]string{true: "✓", false: "✗"}
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account with email and password.

Unless the server auto-confirms accounts, a verification token is sent to
your email. Confirm it with 'feelfree verify <token>' before signing in.

Examples:
  feelfree signup
  feelfree signup --email asha@example.com`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Confirm your email with the token you received",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var resendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Send the verification email again",
	Args:  cobra.NoArgs,
	RunE:  runResend,
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Args:  cobra.NoArgs,
	RunE:  runPassword,
}

func init() {
	for _, cmd := range []*cobra.Command{signupCmd, loginCmd, resendCmd} {
		cmd.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
	}
}

func runSignup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrompter()

	email, err := p.valueOr(authEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := readNewPassword(p)
	if err != nil {
		return err
	}

	c := newClient()
	res, err := c.SignUp(ctx, email, password)
	if err != nil {
		return userError(err)
	}
	logger.Info("signed up", "user_id", res.User.ID, "confirmation_required", res.ConfirmationRequired)

	if res.Session == nil {
		fmt.Printf("Account created for %s.\n", res.User.Email)
		fmt.Println("Check your email for a verification token, then run 'feelfree verify <token>'.")
		return nil
	}
	if err := saveCredentials(credsPath, credentialsFromSession(c.BaseURL(), res.Session)); err != nil {
		return err
	}
	fmt.Printf("Welcome, %s! Run 'feelfree onboard' to set up your companion.\n", res.User.Email)
	return nil
}

// readNewPassword asks twice and prints the strength checklist.
func readNewPassword(p *prompter) (string, error) {
	for {
		password, err := p.password("Password: ")
		if err != nil {
			return "", err
		}
		s := auth.ValidatePassword(password)
		fmt.Println(renderStrength(s))
		if len([]rune(password)) < auth.MinPasswordLength {
			fmt.Println(auth.Message(auth.ErrWeakPassword))
			continue
		}
		confirm, err := p.password("Confirm password: ")
		if err != nil {
			return "", err
		}
		if confirm != password {
			fmt.Println("Passwords do not match")
			continue
		}
		return password, nil
	}
}

func renderStrength(s auth.PasswordStrength) string {
	var b strings.Builder
	items := []struct {
		ok    bool
		label string
	}{
		{s.Length, "at least 8 characters"},
		{s.Uppercase, "an uppercase letter"},
		{s.Lowercase, "a lowercase letter"},
		{s.Number, "a number"},
		{s.Special, "a special character"},
	}
	for _, it := range items {
		fmt.Fprintf(&b, "  %s %s\n", checkLabel[it.ok], it.label)
	}
	verdict := "weak"
	if s.Valid {
		verdict = "strong"
	}
	fmt.Fprintf(&b, "  strength: %d/5 (%s)", s.Score, verdict)
	return b.String()
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p := newPrompter()

	email, err := p.valueOr(authEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := p.password("Password: ")
	if err != nil {
		return err
	}

	c := newClient()
	sess, err := c.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotConfirmed) {
			return fmt.Errorf("%s (run 'feelfree resend --email %s' for a new token)", auth.Message(err), email)
		}
		return userError(err)
	}
	if err := saveCredentials(credsPath, credentialsFromSession(c.BaseURL(), sess)); err != nil {
		return err
	}

	route, err := c.Route(ctx, "/")
	if err != nil {
		logger.Warn("route lookup failed", "error", err)
	}
	fmt.Printf("Signed in as %s.\n", sess.User.Email)
	switch route {
	case service.PathOnboarding:
		fmt.Println("Run 'feelfree onboard' to finish setting up.")
	case service.PathChat:
		fmt.Println("Run 'feelfree chat' to start talking.")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	creds, err := loadCredentials(credsPath)
	if errors.Is(err, errNotSignedIn) {
		fmt.Println("Not signed in.")
		return nil
	}
	if err != nil {
		return err
	}

	c := client.New(creds.Server)
	c.SetToken(creds.AccessToken)
	if err := c.SignOut(ctx, creds.RefreshToken); err != nil {
		// The local session is dropped either way.
		logger.Warn("sign out failed", "error", err)
	}
	if err := removeCredentials(credsPath); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	user, err := newClient().VerifyEmail(context.Background(), args[0])
	if err != nil {
		return userError(err)
	}
	fmt.Printf("Email %s confirmed. Run 'feelfree login' to sign in.\n", user.Email)
	return nil
}

func runResend(cmd *cobra.Command, args []string) error {
	email, err := newPrompter().valueOr(authEmail, "Email: ")
	if err != nil {
		return err
	}
	if err := newClient().ResendVerification(context.Background(), email); err != nil {
		return userError(err)
	}
	fmt.Println("Verification email sent.")
	return nil
}

func runPassword(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, _, err := authedClient(ctx)
	if err != nil {
		return err
	}
	password, err := readNewPassword(newPrompter())
	if err != nil {
		return err
	}
	if err := c.UpdatePassword(ctx, password); err != nil {
		return userError(err)
	}
	// Every session is revoked on a password change.
	if err := removeCredentials(credsPath); err != nil {
		return err
	}
	fmt.Println("Password updated. Sign in again with 'feelfree login'.")
	return nil
}

// userError swaps auth failures for their fixed user-facing text.
func userError(err error) error {
	if auth.Code(err) != "" {
		return errors.New(auth.Message(err))
	}
	return err
}
