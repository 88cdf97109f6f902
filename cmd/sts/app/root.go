// Package app provides the sts command line: it builds the identity services
// from STS_* environment variables and drives them one operation at a time.
package app

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-sts/config"
	"github.com/goliatone/go-sts/registration"
	"github.com/spf13/cobra"
)

// servicesBuilder is replaced in tests.
var servicesBuilder = func(ctx context.Context, cmd *cobra.Command) (*registration.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	sugar, err := newLogger(debug)
	if err != nil {
		return nil, err
	}
	return registration.Build(ctx, cfg, zapLogger{s: sugar})
}

// NewRootCmd creates the root command for the sts CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "sts",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Identity core of an OpenID Connect security token service",
		Long: `sts authenticates local and federated users, issues profile claims,
re-validates sessions and manages consents against the configured user store.

The store, lockout policy, token keys, clients and scopes are read from
STS_* environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		newAuthenticateCmd(),
		newExternalCmd(),
		newProfileCmd(),
		newActiveCmd(),
		newConsentCmd(),
		newClientsCmd(),
		newScopesCmd(),
	)
	return root
}

// withServices builds the services for one command and closes them after.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *registration.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := servicesBuilder(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, svc)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
