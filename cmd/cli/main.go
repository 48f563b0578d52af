// Command ak is a CLI client for the analysis-keeper HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type cliOptions struct {
	addr    string
	timeout time.Duration
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &cliOptions{out: out}
	root := &cobra.Command{
		Use:           "ak",
		Short:         "Client for the analysis-keeper upload service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.addr, "addr", envOr("AK_ADDR", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(opts.out, "ak %s (%s)\n", version, buildDate)
			},
		},
		signupCmd(opts),
		loginCmd(opts),
		logoutCmd(),
		meCmd(opts),
		passwordCmd(opts),
		renameCmd(opts),
		uploadCmd(opts),
		historyCmd(opts),
		getCmd(opts),
		chartCmd(opts),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *cliOptions) anon() *apiClient { return newAPIClient(o.addr, "", o.timeout) }

func (o *cliOptions) authed() (*apiClient, error) {
	tok, err := loadToken()
	if err != nil {
		return nil, err
	}
	return newAPIClient(o.addr, tok, o.timeout), nil
}

func (o *cliOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signupCmd(o *cliOptions) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(o.out, password, "Password")
			if err != nil {
				return err
			}
			if err := o.anon().signup(cmd.Context(), email, pw, name); err != nil {
				return err
			}
			fmt.Fprintln(o.out, "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func loginCmd(o *cliOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(o.out, password, "Password")
			if err != nil {
				return err
			}
			res, err := o.anon().login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			if err := saveToken(tokenFile{
				AccessToken: res.AccessToken,
				ExpiresAt:   tokenExpiry(res.AccessToken),
				Email:       res.Email,
			}); err != nil {
				return err
			}
			fmt.Fprintf(o.out, "logged in as %s\n", res.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// tokenExpiry reads exp without verifying the signature; the server does that.
func tokenExpiry(raw string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(15 * time.Minute)
	}
	return claims.ExpiresAt.Time
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE:  func(*cobra.Command, []string) error { return removeToken() },
	}
}

func meCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			u, err := c.me(cmd.Context())
			if err != nil {
				return err
			}
			return o.printJSON(u)
		},
	}
}

func passwordCmd(o *cliOptions) *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			if current, err = passwordOrPrompt(o.out, current, "Current password"); err != nil {
				return err
			}
			if next, err = passwordOrPrompt(o.out, next, "New password"); err != nil {
				return err
			}
			return c.changePassword(cmd.Context(), current, next)
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}

func renameCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name>",
		Short: "Change the display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			return c.rename(cmd.Context(), args[0])
		},
	}
}

func uploadCmd(o *cliOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file|->",
		Short: "Upload a file for analysis and print the engine result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			body, err := c.upload(cmd.Context(), name, data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(o.out, string(body))
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "file name sent to the server (default: base name of the path)")
	return cmd
}

func historyCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past analyses, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			recs, err := c.history(cmd.Context())
			if err != nil {
				return err
			}
			type row struct {
				ID        int64   `json:"id"`
				FileName  string  `json:"fileName"`
				FileID    *string `json:"fileId"`
				Summary   *string `json:"summary"`
				CreatedAt string  `json:"createdAt"`
			}
			rows := make([]row, 0, len(recs))
			for _, r := range recs {
				rows = append(rows, row{
					ID:        r.ID,
					FileName:  r.FileName,
					FileID:    r.FileID,
					Summary:   r.Summary,
					CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
			return o.printJSON(rows)
		},
	}
}

func getCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad id %q", args[0])
			}
			c, err := o.authed()
			if err != nil {
				return err
			}
			rec, err := c.get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return o.printJSON(rec)
		},
	}
}

func chartCmd(o *cliOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "chart <file-id> <chart-type>",
		Short: "Download a chart image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			data, _, err := c.chart(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = o.out.Write(data)
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func readInput(stdin io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(p)
}
