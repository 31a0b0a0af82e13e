package main

import (
	"context"

	settings "github.com/goliatone/go-account-settings"
	"github.com/goliatone/go-account-settings/adapters/gocommand"
	settingscommand "github.com/goliatone/go-account-settings/command"
	"github.com/goliatone/go-account-settings/core"
	sqlstore "github.com/goliatone/go-account-settings/store/sql"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

var identifiersRemote bool

var identifiersCmd = &cobra.Command{
	Use:   "identifiers",
	Short: "Manage the local cache of linked identifiers",
}

var identifiersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch linked identifiers from the homeserver into the cache database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.cfg.requireHomeserver(); err != nil {
				return err
			}
			store, closeStore, err := openIdentifierStores(ctx, rt)
			if err != nil {
				return err
			}
			defer closeStore()

			sync, err := settings.NewIdentifierSync(rt.homeserver,
				settings.WithSyncStore(store),
				settings.WithSyncLogger(rt.logger),
			)
			if err != nil {
				return err
			}
			s, err := newSession(rt, sessionOptions{
				discovery:  true,
				facadeOpts: []settings.FacadeOption{settings.WithIdentifierSync(sync)},
			})
			if err != nil {
				return err
			}
			defer s.Close()

			result := gocmd.NewResult[[]core.ThirdPartyIdentifier]()
			if err := gocommand.Dispatch(gocmd.ContextWithResult(ctx, result), settingscommand.SyncIdentifiersMessage{
				UserID: rt.cfg.UserID,
			}); err != nil {
				return err
			}
			identifiers, _ := result.Load()
			writeIdentifiers(cmd.OutOrStdout(), identifiers)
			return nil
		})
	},
}

var identifiersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked identifiers from the cache database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			identifiers, err := currentIdentifiers(ctx, rt, !identifiersRemote)
			if err != nil {
				return err
			}
			writeIdentifiers(cmd.OutOrStdout(), identifiers)
			return nil
		})
	},
}

func init() {
	identifiersListCmd.Flags().BoolVar(&identifiersRemote, "remote", false, "list from the homeserver instead of the cache database")
	identifiersCmd.AddCommand(identifiersSyncCmd, identifiersListCmd)
}

// openIdentifierStores opens the cache database, applying pending
// migrations, and returns the cached identifier store over it.
func openIdentifierStores(ctx context.Context, rt *runtime) (*sqlstore.CachedIdentifierStore, func(), error) {
	client, err := openDatabase(ctx, rt.cfg, true)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = client.Close() }

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	store, err := factory.CachedIdentifierStore(nil)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
