package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-account-settings/adapters/gocommand"
	settingscommand "github.com/goliatone/go-account-settings/command"
	"github.com/goliatone/go-account-settings/core"
	"github.com/spf13/cobra"
)

var (
	discoveryFromCache bool
	acceptTermsYes     bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Show how linked email addresses and phone numbers are offered for discovery",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			identifiers, err := currentIdentifiers(ctx, rt, discoveryFromCache)
			if err != nil {
				return err
			}
			s, err := newSession(rt, sessionOptions{identifiers: identifiers, discovery: true})
			if err != nil {
				return err
			}
			defer s.Close()

			state, err := dispatchDiscovery(ctx, s, settingscommand.LoadDiscoveryMessage{})
			if err != nil {
				return err
			}
			writeViewState(cmd.OutOrStdout(), state)
			return stateError(state)
		})
	},
}

var acceptTermsCmd = &cobra.Command{
	Use:   "accept-terms",
	Short: "Accept the identity server policies and reload discovery",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if rt.identity == nil {
				return fmt.Errorf("missing required configuration: %sIDENTITY_SERVER_URL", envPrefix)
			}
			identifiers, err := currentIdentifiers(ctx, rt, false)
			if err != nil {
				return err
			}
			s, err := newSession(rt, sessionOptions{identifiers: identifiers, discovery: true})
			if err != nil {
				return err
			}
			defer s.Close()

			state, host, err := checkTerms(ctx, s)
			if err != nil {
				return err
			}
			if host != "" {
				if err := agreeToPolicies(ctx, cmd, rt, host); err != nil {
					return err
				}
				if state, host, err = checkTerms(ctx, s); err != nil {
					return err
				}
				if host != "" {
					return &exitError{code: 1, err: fmt.Errorf("%s still reports its terms as not accepted", host)}
				}
			}
			writeViewState(cmd.OutOrStdout(), state)
			return stateError(state)
		})
	},
}

// checkTerms dispatches AcceptTerms. A non-empty host means the identity
// server still wants its policies accepted.
func checkTerms(ctx context.Context, s *session) (core.ViewState, string, error) {
	if err := gocommand.Dispatch(ctx, settingscommand.AcceptTermsMessage{}); err != nil {
		return nil, "", err
	}
	return s.awaitTermsCheck(ctx)
}

// agreeToPolicies lists the identity server policies, asks for confirmation
// and records the acceptance on both servers.
func agreeToPolicies(ctx context.Context, cmd *cobra.Command, rt *runtime, host string) error {
	policies, err := rt.identity.Terms(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s requires these policies:\n", host)
	var urls []string
	for _, policy := range policies {
		fmt.Fprintf(out, "%s (version %s)\n", policy.ID, policy.Version)
		for _, url := range policy.URLs() {
			fmt.Fprintf(out, "  %s\n", url)
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return &exitError{code: 1, err: fmt.Errorf("%s requires terms but lists no policy documents", host)}
	}
	if !acceptTermsYes {
		ok, err := confirm(cmd.InOrStdin(), out, "Accept these policies? [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			return &exitError{code: 1, err: fmt.Errorf("policies not accepted")}
		}
	}
	if err := rt.identity.AgreeToTerms(ctx, urls); err != nil {
		return err
	}
	return rt.homeserver.RecordAcceptedTerms(ctx, urls)
}

func init() {
	discoveryCmd.Flags().BoolVar(&discoveryFromCache, "cached", false, "read identifiers from the local cache database instead of the homeserver")
	acceptTermsCmd.Flags().BoolVarP(&acceptTermsYes, "yes", "y", false, "accept without prompting")
}

// currentIdentifiers reads the linked identifiers from the homeserver, or
// from the cache database when cached is set.
func currentIdentifiers(ctx context.Context, rt *runtime, cached bool) ([]core.ThirdPartyIdentifier, error) {
	if err := rt.cfg.requireHomeserver(); err != nil {
		return nil, err
	}
	if !cached {
		return rt.homeserver.ListIdentifiers(ctx, rt.cfg.UserID)
	}
	stores, closeStores, err := openIdentifierStores(ctx, rt)
	if err != nil {
		return nil, err
	}
	defer closeStores()
	return stores.ListIdentifiers(ctx, rt.cfg.UserID)
}

func writeViewState(w io.Writer, state core.ViewState) {
	fmt.Fprintf(w, "state: %s\n", core.DescribeViewState(state))
	loaded, ok := state.(core.StateLoaded)
	if !ok {
		return
	}
	switch mode := loaded.Mode.(type) {
	case core.ModeNoIdentityService:
		fmt.Fprintln(w, "no identity server is configured")
	case core.ModeTermsNotSigned:
		fmt.Fprintf(w, "the terms of %s have not been accepted; run settingsctl accept-terms\n", mode.Host)
	case core.ModeNoIdentifiersLinked:
		fmt.Fprintln(w, "no email addresses or phone numbers are linked")
	case core.ModeIdentifiersLinked:
		writeIdentifiers(w, append(append([]core.ThirdPartyIdentifier(nil), mode.Emails...), mode.PhoneNumbers...))
	}
}

func writeIdentifiers(w io.Writer, identifiers []core.ThirdPartyIdentifier) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, identifier := range identifiers {
		fmt.Fprintf(tw, "%s\t%s\n", identifier.Medium, identifier.Address)
	}
	_ = tw.Flush()
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
