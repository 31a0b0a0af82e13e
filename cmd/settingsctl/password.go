package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-account-settings/adapters/gocommand"
	settingscommand "github.com/goliatone/go-account-settings/command"
	"github.com/goliatone/go-account-settings/core"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var changePasswordLogoutDevices bool

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the account password",
	Long: "Change the account password. Secrets are read from the terminal without echo, " +
		"or one per line from stdin when it is not a terminal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.cfg.requireHomeserver(); err != nil {
				return err
			}
			reader := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr())
			oldSecret, err := reader.read("Current password: ")
			if err != nil {
				return err
			}
			newSecret, err := reader.read("New password: ")
			if err != nil {
				return err
			}
			repeated, err := reader.read("Repeat new password: ")
			if err != nil {
				return err
			}
			if newSecret != repeated {
				return &exitError{code: 1, err: fmt.Errorf("new passwords do not match")}
			}

			s, err := newSession(rt, sessionOptions{
				credential: rt.homeserver,
				indicator:  writerIndicator{w: cmd.ErrOrStderr(), message: "changing password..."},
			})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := gocommand.Dispatch(ctx, settingscommand.ChangeCredentialMessage{
				Request: core.CredentialChangeRequest{
					OldSecret:               oldSecret,
					NewSecret:               newSecret,
					InvalidateOtherSessions: changePasswordLogoutDevices,
				},
			}); err != nil {
				return err
			}
			if err := s.awaitOutcome(ctx); err != nil {
				if ctx.Err() != nil {
					_ = gocommand.Dispatch(context.Background(), settingscommand.CancelCredentialMessage{})
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		})
	},
}

func init() {
	changePasswordCmd.Flags().BoolVar(&changePasswordLogoutDevices, "logout-devices", false, "sign out every other session after the change")
}

type secretReader struct {
	in       io.Reader
	prompt   io.Writer
	lines    *bufio.Reader
	fd       int
	terminal bool
}

func newSecretReader(in io.Reader, prompt io.Writer) *secretReader {
	r := &secretReader{in: in, prompt: prompt}
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		r.fd = int(file.Fd())
		r.terminal = true
	}
	return r
}

func (r *secretReader) read(prompt string) (string, error) {
	fmt.Fprint(r.prompt, prompt)
	if r.terminal {
		secret, err := term.ReadPassword(r.fd)
		fmt.Fprintln(r.prompt)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}
	if r.lines == nil {
		r.lines = bufio.NewReader(r.in)
	}
	line, err := r.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
