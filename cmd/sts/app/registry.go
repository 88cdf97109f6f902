package app

import (
	"context"

	"github.com/goliatone/go-sts/registration"
	"github.com/spf13/cobra"
)

func newClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List the configured clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(_ context.Context, svc *registration.Services) error {
				return printJSON(cmd, svc.Clients)
			})
		},
	}
}

func newScopesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "List the configured scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(_ context.Context, svc *registration.Services) error {
				return printJSON(cmd, svc.Scopes)
			})
		},
	}
}
