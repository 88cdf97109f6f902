package app

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/config"
	"github.com/goliatone/go-sts/registration"
	"github.com/goliatone/go-sts/tokens"
	"github.com/spf13/cobra"
)

// signInOutput is printed after a successful sign-in.
type signInOutput struct {
	Result    *sts.AuthenticateResult `json:"result"`
	Token     string                  `json:"token,omitempty"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

var errSignInRejected = goerrors.New("sign-in rejected", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("STS_SIGN_IN_REJECTED")

func newAuthenticateCmd() *cobra.Command {
	var password, client string

	cmd := &cobra.Command{
		Use:   "authenticate <username>",
		Short: "Sign in a local user with a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
				lc := &sts.LocalAuthenticationContext{
					UserName:      args[0],
					Password:      password,
					SignInMessage: &sts.SignInMessage{ClientID: client},
				}
				if err := svc.Users.AuthenticateLocal(ctx, lc); err != nil {
					return err
				}
				return printSignIn(cmd, svc, lc.AuthenticateResult, client)
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password to check")
	cmd.Flags().StringVar(&client, "client", "", "Client requesting the sign-in")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newExternalCmd() *cobra.Command {
	var client string
	var claims []string

	cmd := &cobra.Command{
		Use:   "external <provider> <provider-id>",
		Short: "Sign in a federated identity, creating and linking the account if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asserted, err := parseClaims(claims)
			if err != nil {
				return err
			}

			return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
				ec := &sts.ExternalAuthenticationContext{
					ExternalIdentity: &sts.ExternalIdentity{
						Provider:   args[0],
						ProviderID: args[1],
						Claims:     asserted,
					},
					SignInMessage: &sts.SignInMessage{ClientID: client, IdP: args[0]},
				}
				if err := svc.Users.AuthenticateExternal(ctx, ec); err != nil {
					return err
				}
				return printSignIn(cmd, svc, ec.AuthenticateResult, client)
			})
		},
	}

	cmd.Flags().StringArrayVar(&claims, "claim", nil, "Asserted claim as type=value, repeatable")
	cmd.Flags().StringVar(&client, "client", "", "Client requesting the sign-in")
	return cmd
}

func printSignIn(cmd *cobra.Command, svc *registration.Services, result *sts.AuthenticateResult, client string) error {
	if result == nil {
		return errSignInRejected
	}
	if result.IsError() {
		return goerrors.Wrap(errSignInRejected, goerrors.CategoryAuth, result.ErrorMessage)
	}

	out := signInOutput{Result: result}
	if svc.Tokens != nil {
		token, expires, err := svc.Tokens.Issue(result, client)
		if err != nil {
			return err
		}
		out.Token = token
		out.ExpiresAt = &expires
	}
	return printJSON(cmd, out)
}

func newProfileCmd() *cobra.Command {
	var client string
	var claimTypes, scopes []string

	cmd := &cobra.Command{
		Use:   "profile <subject>",
		Short: "Print the claims issued for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
				requested := claimTypes
				if len(scopes) > 0 {
					requested = append(requested, config.ClaimTypesForScopes(svc.Scopes, scopes)...)
				}

				req := &sts.ProfileDataRequest{
					Subject:             sts.NewSubject(args[0]),
					RequestedClaimTypes: requested,
					ClientID:            client,
				}
				if err := svc.Users.GetProfileData(ctx, req); err != nil {
					return err
				}
				return printJSON(cmd, req.IssuedClaims)
			})
		},
	}

	cmd.Flags().StringSliceVar(&claimTypes, "claim-types", nil, "Claim types to issue, all when empty")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Scopes whose claim types are issued")
	cmd.Flags().StringVar(&client, "client", "", "Client requesting the claims")
	return cmd
}

// activeOutput is printed by the active command.
type activeOutput struct {
	Subject string `json:"sub,omitempty"`
	Active  bool   `json:"active"`
}

func newActiveCmd() *cobra.Command {
	var subject, stamp, token, client string

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Check whether a subject or token may still receive tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (subject == "") == (token == "") {
				return goerrors.New("exactly one of --subject or --token is required", goerrors.CategoryBadInput).
					WithCode(goerrors.CodeBadRequest)
			}

			return withServices(cmd, func(ctx context.Context, svc *registration.Services) error {
				if token != "" {
					if svc.Validator == nil {
						return goerrors.New("no token signing key configured", goerrors.CategoryBadInput)
					}
					active, err := tokens.CheckSession(ctx, svc.Validator, svc.Users, token)
					if err != nil {
						return err
					}
					return printJSON(cmd, activeOutput{Active: active})
				}

				ac := &sts.IsActiveContext{Subject: sts.NewSubject(subject), ClientID: client}
				if stamp != "" {
					ac.Subject.Claims = append(ac.Subject.Claims, sts.NewClaim(sts.ClaimSecurityStamp, stamp))
				}
				if err := svc.Users.IsActive(ctx, ac); err != nil {
					return err
				}
				return printJSON(cmd, activeOutput{Subject: subject, Active: ac.IsActive})
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier to check")
	cmd.Flags().StringVar(&stamp, "stamp", "", "Security stamp carried by the session")
	cmd.Flags().StringVar(&token, "token", "", "Issued token to check")
	cmd.Flags().StringVar(&client, "client", "", "Client asking")
	return cmd
}

func parseClaims(pairs []string) ([]sts.Claim, error) {
	claims := make([]sts.Claim, 0, len(pairs))
	for _, p := range pairs {
		typ, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(typ) == "" {
			return nil, goerrors.New("claim must be type=value: "+p, goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest)
		}
		claims = append(claims, sts.NewClaim(strings.TrimSpace(typ), value))
	}
	return claims, nil
}
