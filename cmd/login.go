package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the dashboard",
	Long: "Checks credentials locally, against the /auth endpoint or directly against SSM " +
		"parameters (auth.mode) and " +
		"remembers the signed-in state in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")

		if fromStdin {
			p, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			password = p
		}

		gate, closeFn, err := initGate(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := gate.Login(ctx, auth.Credentials{Username: username, Password: password})
		if err != nil {
			return err
		}
		if !res.Valid {
			return eris.Errorf("login: %s", res.Message)
		}

		zap.L().Info("signed in", zap.String("username", username), zap.String("mode", cfg.Auth.Mode))
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the dashboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gate, closeFn, err := initGate(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := gate.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored login state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gate, closeFn, err := initGate(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		s := gate.Session()
		if !s.Authenticated() {
			fmt.Fprintln(cmd.OutOrStdout(), auth.StatusUnauthenticated)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s as %s\n", auth.StatusAuthenticated, s.Username())
		return nil
	},
}

// initGate opens the store and restores the persisted session.
func initGate(cmd *cobra.Command) (*auth.Gate, func(), error) {
	ctx := cmd.Context()
	if err := cfg.Validate("login"); err != nil {
		return nil, nil, err
	}

	ac := auth.Config{
		Mode:          cfg.Auth.Mode,
		Username:      cfg.Auth.Username,
		Password:      cfg.Auth.Password,
		APIBase:       cfg.Auth.APIBase,
		UsernameParam: cfg.Auth.UsernameParam,
		PasswordParam: cfg.Auth.PasswordParam,
	}
	if strings.EqualFold(cfg.Auth.Mode, auth.ModeSSM) {
		params, err := initParameterStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		ac.Params = params
	}
	checker, err := auth.NewChecker(ac)
	if err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	session := auth.NewSession(st)
	if err := session.Load(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return auth.NewGate(checker, session), func() { _ = st.Close() }, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "login: read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "username")
	loginCmd.Flags().StringP("password", "p", "", "password")
	loginCmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
