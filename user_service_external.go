package sts

import (
	"context"
	"strings"
)

// AuthenticateExternal signs in a federated identity. Unknown identities get
// a local account (found through the existing-user hook or newly created),
// the external login is linked and the asserted claims are reconciled once.
// Creation and linking failures become an error AuthenticateResult.
func (s *UserService[U, K]) AuthenticateExternal(ctx context.Context, ec *ExternalAuthenticationContext) error {
	if ec == nil {
		return ErrMissingContext
	}
	if ec.ExternalIdentity == nil {
		return ErrMissingExternalIdentity
	}

	ec.AuthenticateResult = nil
	identity := *ec.ExternalIdentity

	result, attempt, err := s.authenticateExternal(ctx, identity)
	s.recordAttempt(ctx, ActivityEventExternalLogin, attempt, ec.SignInMessage)
	if err != nil {
		return err
	}

	ec.AuthenticateResult = result
	return nil
}

func (s *UserService[U, K]) authenticateExternal(ctx context.Context, identity ExternalIdentity) (*AuthenticateResult, loginAttempt, error) {
	attempt := loginAttempt{provider: identity.Provider}
	login := NewExternalLogin(identity.Provider, identity.ProviderID)

	user, found, err := s.store.FindByLogin(ctx, login)
	if err != nil {
		return s.failAttempt(attempt, err, "failed to find external login")
	}

	if found {
		attempt.userID = FormatSubject(user.GetID())
		attempt.userName = user.GetUserName()
		result, err := s.signInExternal(ctx, user.GetID(), identity.Provider)
		if err != nil {
			return s.failAttempt(attempt, err, "failed to sign in external account")
		}
		attempt.outcome = OutcomeSucceeded
		return result, attempt, nil
	}

	return s.processNewExternalAccount(ctx, identity, attempt)
}

func (s *UserService[U, K]) processNewExternalAccount(ctx context.Context, identity ExternalIdentity, attempt loginAttempt) (*AuthenticateResult, loginAttempt, error) {
	user, found, err := s.findExisting(ctx, identity.Provider, identity.Claims)
	if err != nil {
		return s.failAttempt(attempt, err, "failed to resolve existing account from claims")
	}

	if !found {
		user, err = s.newUser(ctx, identity)
		if err != nil {
			return s.failAttempt(attempt, err, "failed to instantiate user")
		}

		res, err := s.store.Create(ctx, user)
		if err != nil {
			return s.failAttempt(attempt, err, "failed to create user")
		}
		if !res.Succeeded {
			attempt.outcome = OutcomeCreateFailed
			attempt.userName = user.GetUserName()
			attempt.err = res.Err()
			return NewErrorResult(res.FirstError()), attempt, nil
		}

		// Stores assign keys on create; read the record back to get it.
		created, ok, err := s.store.FindByUserName(ctx, user.GetUserName())
		if err != nil {
			return s.failAttempt(attempt, err, "failed to read created user")
		}
		if ok {
			user = created
		}
		s.recordAccountCreated(ctx, user, identity.Provider)
	}

	id := user.GetID()
	attempt.userID = FormatSubject(id)
	attempt.userName = user.GetUserName()

	res, err := s.store.AddLogin(ctx, id, NewExternalLogin(identity.Provider, identity.ProviderID))
	if err != nil {
		return s.failAttempt(attempt, err, "failed to link external login")
	}
	if !res.Succeeded {
		attempt.outcome = OutcomeLinkFailed
		attempt.err = res.Err()
		return NewErrorResult(res.FirstError()), attempt, nil
	}

	if _, res, err := s.ReconcileExternalClaims(ctx, id, identity.Claims); err != nil {
		return s.failAttempt(attempt, err, "failed to reconcile external claims")
	} else if !res.Succeeded {
		attempt.outcome = OutcomeReconcileFailed
		attempt.err = res.Err()
		return NewErrorResult(res.FirstError()), attempt, nil
	}

	result, err := s.signInExternal(ctx, id, identity.Provider)
	if err != nil {
		return s.failAttempt(attempt, err, "failed to sign in external account")
	}

	attempt.outcome = OutcomeSucceeded
	if !found {
		attempt.outcome = OutcomeAccountCreated
	}
	return result, attempt, nil
}

// ReconcileExternalClaims folds claims asserted by an external provider into
// the user's record. An email claim sets the user's email when none is stored.
// When the email is set, or already equals the stored one, it is dropped
// together with email_verified. The remaining claims are added only when not
// already present by type and value, so replaying the same assertion adds
// nothing. It returns the claims that were added.
func (s *UserService[U, K]) ReconcileExternalClaims(ctx context.Context, userID K, claims []Claim) ([]Claim, OperationResult, error) {
	claims, err := s.setAccountEmail(ctx, userID, claims)
	if err != nil {
		return nil, OperationResult{}, err
	}

	if s.claims == nil {
		return nil, Success(), nil
	}

	existing, err := s.claims.GetClaims(ctx, userID)
	if err != nil {
		return nil, OperationResult{}, storeError(err, "failed to read claims")
	}

	added := make([]Claim, 0)
	for _, claim := range ClaimsExcept(claims, existing) {
		res, err := s.claims.AddClaim(ctx, userID, claim)
		if err != nil {
			return added, OperationResult{}, storeError(err, "failed to add claim")
		}
		if !res.Succeeded {
			return added, res, nil
		}
		added = append(added, claim)
	}

	if len(added) > 0 {
		evt := ActivityEvent{
			EventType:  ActivityEventClaimsMerged,
			Outcome:    OutcomeSucceeded,
			UserID:     FormatSubject(userID),
			Metadata:   map[string]any{"added": len(added)},
			OccurredAt: s.now(),
		}
		if err := s.activity.Record(ctx, evt); err != nil {
			s.logger.Error("activity sink failed", "event", evt.EventType, "error", err)
		}
	}

	return added, Success(), nil
}

func (s *UserService[U, K]) setAccountEmail(ctx context.Context, userID K, claims []Claim) ([]Claim, error) {
	if s.emails == nil {
		return claims, nil
	}

	email, ok := FindClaim(claims, ClaimEmail)
	if !ok {
		return claims, nil
	}

	current, err := s.emails.GetEmail(ctx, userID)
	if err != nil {
		return claims, storeError(err, "failed to read email")
	}
	current = strings.TrimSpace(current)
	if current != "" {
		if strings.EqualFold(current, strings.TrimSpace(email.Value)) {
			// already stored as the account email
			return WithoutClaimTypes(claims, ClaimEmail, ClaimEmailVerified), nil
		}
		return claims, nil
	}

	res, err := s.emails.SetEmail(ctx, userID, email.Value)
	if err != nil {
		return claims, storeError(err, "failed to set email")
	}
	if !res.Succeeded {
		// most likely the address belongs to another account; let the claim through
		s.logger.Warn("unable to set email from external claims", "user_id", FormatSubject(userID), "error", res.FirstError())
		return claims, nil
	}

	return WithoutClaimTypes(claims, ClaimEmail, ClaimEmailVerified), nil
}

func (s *UserService[U, K]) signInExternal(ctx context.Context, id K, provider string) (*AuthenticateResult, error) {
	user, found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidSubject
	}
	return s.signInResult(ctx, user, AuthMethodExternal, provider)
}

func (s *UserService[U, K]) recordAccountCreated(ctx context.Context, user U, provider string) {
	s.logger.Info("created account from external provider", "user_name", user.GetUserName(), "provider", provider)
	evt := ActivityEvent{
		EventType:  ActivityEventAccountCreated,
		Outcome:    OutcomeAccountCreated,
		UserID:     FormatSubject(user.GetID()),
		UserName:   user.GetUserName(),
		Provider:   provider,
		OccurredAt: s.now(),
	}
	if err := s.activity.Record(ctx, evt); err != nil {
		s.logger.Error("activity sink failed", "event", evt.EventType, "error", err)
	}
}
