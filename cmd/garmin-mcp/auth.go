// ABOUTME: CLI commands for signing in to Garmin Connect and managing saved tokens.
// ABOUTME: Provides auth login (with MFA prompt), auth status, and auth logout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/harperreed/garmin-mcp/internal/config"
	"github.com/harperreed/garmin-mcp/internal/garmin"
	"github.com/harperreed/garmin-mcp/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginForce bool
	statusJSON bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Garmin Connect session",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and save tokens",
	Long: `Sign in to Garmin Connect and save OAuth tokens to the token directory.

Saved tokens are tried first. Use --force to discard them and sign in with
email and password. Missing credentials are prompted for, as is the
multi-factor code when the account asks for one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAuthRunner(cmd).login(cmd.Context(), loginForce)
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAuthRunner(cmd).status(cmd.Context(), statusJSON)
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete saved tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAuthRunner(cmd).logout()
	},
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginForce, "force", false, "ignore saved tokens and sign in again")
	authStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	authCmd.AddCommand(authLoginCmd, authStatusCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}

// authRunner carries everything the auth commands touch, so tests can
// substitute the terminal and the Garmin endpoints.
type authRunner struct {
	cfg           *config.Config
	logger        *log.Logger
	in            *bufio.Reader
	out           io.Writer
	readPassword  func() (string, error)
	clientOptions []garmin.Option
}

func newAuthRunner(cmd *cobra.Command) *authRunner {
	r := &authRunner{
		cfg:    cfg,
		logger: logger,
		in:     bufio.NewReader(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.readPassword = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(r.out)
			return string(b), err
		}
	}
	return r
}

func (r *authRunner) prompt(label string) (string, error) {
	fmt.Fprint(r.out, label)
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func (r *authRunner) password() (string, error) {
	if r.readPassword == nil {
		return r.prompt("Password: ")
	}
	fmt.Fprint(r.out, "Password: ")
	return r.readPassword()
}

func (r *authRunner) mfaCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.prompt("MFA code: ")
}

func (r *authRunner) login(ctx context.Context, force bool) error {
	c := *r.cfg
	if force {
		if err := r.manager(&c).Logout(); err != nil {
			return err
		}
	}

	// Saved tokens are tried first, so credentials are only asked for
	// when there are none.
	needCredentials := force || !garmin.NewTokenStore(c.TokenStore).Exists()
	if needCredentials && !c.HasCredentials() {
		var err error
		if c.Email == "" {
			if c.Email, err = r.prompt("Garmin email: "); err != nil {
				return err
			}
		}
		if c.Password == "" {
			if c.Password, err = r.password(); err != nil {
				return err
			}
		}
	}

	sess, err := r.manager(&c).Authenticate(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintln(r.out, "✗ Login failed")
		return err
	}

	color.New(color.FgGreen).Fprintf(r.out, "✓ Logged in as %s", sess.Profile.DisplayName)
	fmt.Fprintf(r.out, " %s\n", color.New(color.Faint).Sprintf("(via %s)", sess.Method))
	fmt.Fprintf(r.out, "  Tokens saved to %s\n", c.TokenStore)
	return nil
}

func (r *authRunner) status(ctx context.Context, asJSON bool) error {
	m := r.manager(r.cfg)
	_, authErr := m.Authenticate(ctx)
	st := m.Status()

	if asJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	faint := color.New(color.Faint)
	if authErr != nil {
		color.New(color.FgYellow).Fprintln(r.out, "✗ Not authenticated")
		fmt.Fprintf(r.out, "  %s\n", faint.Sprint(authErr))
		fmt.Fprintf(r.out, "  Token directory: %s\n", st.TokenDir)
		fmt.Fprintln(r.out, "  Run 'garmin-mcp auth login' to sign in.")
		return nil
	}

	color.New(color.FgGreen).Fprintf(r.out, "✓ Authenticated as %s\n", st.DisplayName)
	if st.FullName != "" {
		fmt.Fprintf(r.out, "  Name:            %s\n", st.FullName)
	}
	fmt.Fprintf(r.out, "  Method:          %s\n", st.Method)
	fmt.Fprintf(r.out, "  Profile PK:      %d\n", st.ProfilePK)
	fmt.Fprintf(r.out, "  Token directory: %s\n", st.TokenDir)
	if st.ExpiresAt != nil {
		fmt.Fprintf(r.out, "  Token expires:   %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (r *authRunner) logout() error {
	if err := r.manager(r.cfg).Logout(); err != nil {
		return err
	}
	color.New(color.FgYellow).Fprintf(r.out, "✓ Removed saved tokens from %s\n", r.cfg.TokenStore)
	return nil
}

func (r *authRunner) manager(c *config.Config) *session.Manager {
	return newManager(c, r.logger, r.mfaCode, r.clientOptions...)
}
