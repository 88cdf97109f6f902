package app

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/config"
	"github.com/goliatone/go-sts/registration"
	"github.com/spf13/cobra"
)

func newConsentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage the scopes subjects granted to clients",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "grant <subject> <client> <scope>...",
			Short: "Grant scopes to a client, replacing any previous grant",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
					client, ok := config.FindClient(svc.Clients, args[1])
					if !ok {
						return goerrors.New("unknown client "+args[1], goerrors.CategoryNotFound).
							WithCode(goerrors.CodeNotFound)
					}
					for _, scope := range args[2:] {
						if !client.AllowsScope(scope) {
							return goerrors.New("scope "+scope+" not allowed for "+client.ID, goerrors.CategoryValidation).
								WithCode(goerrors.CodeBadRequest)
						}
					}

					consent := sts.Consent{Subject: args[0], ClientID: client.ID, Scopes: args[2:]}
					if err := svc.Consents.Update(ctx, consent); err != nil {
						return err
					}
					return printConsent(ctx, cmd, svc, args[0], client.ID)
				})
			},
		},
		&cobra.Command{
			Use:   "list <subject>",
			Short: "List every consent a subject granted",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
					consents, err := svc.Consents.LoadAll(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd, consents)
				})
			},
		},
		&cobra.Command{
			Use:   "show <subject> <client>",
			Short: "Show the consent a subject granted a client",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
					return printConsent(ctx, cmd, svc, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "revoke <subject> <client>",
			Short: "Revoke the consent a subject granted a client",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
					return svc.Consents.Revoke(ctx, args[0], args[1])
				})
			},
		},
	)
	return cmd
}

func printConsent(ctx context.Context, cmd *cobra.Command, svc *registration.Services, subject, client string) error {
	consent, err := svc.Consents.Load(ctx, subject, client)
	if err != nil {
		return err
	}
	if consent == nil {
		return goerrors.New("no consent for "+client, goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}
	return printJSON(cmd, consent)
}
