package sts_test

import (
	"context"
	"errors"
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func google(id string, claims ...sts.Claim) *sts.ExternalAuthenticationContext {
	return &sts.ExternalAuthenticationContext{
		ExternalIdentity: &sts.ExternalIdentity{Provider: "google", ProviderID: id, Claims: claims},
		SignInMessage:    &sts.SignInMessage{ClientID: "web", IdP: "google"},
	}
}

func (s *UserServiceSuite) authenticateExternal(ec *sts.ExternalAuthenticationContext) *sts.AuthenticateResult {
	s.Require().NoError(s.svc.AuthenticateExternal(s.ctx, ec))
	return ec.AuthenticateResult
}

func (s *UserServiceSuite) TestNewExternalIdentityCreatesAccount() {
	result := s.authenticateExternal(google("abc123", sts.NewClaim(sts.ClaimEmail, "a@x.com")))
	s.Require().NotNil(result)
	s.False(result.IsError())
	s.Equal("google", result.IdentityProvider)
	s.Equal(sts.AuthMethodExternal, result.AuthenticationMethod)

	user, found, err := s.store.FindByID(s.ctx, result.SubjectID)
	s.Require().NoError(err)
	s.Require().True(found)
	s.NotEqual(s.alice.ID, user.ID)
	s.Len(user.UserName, 32)
	s.Equal(user.UserName, result.DisplayName)

	linked, found, err := s.store.FindByLogin(s.ctx, sts.NewExternalLogin("google", "abc123"))
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(user.ID, linked.ID)

	email, err := s.store.GetEmail(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("a@x.com", email)

	claims, err := s.store.GetClaims(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Empty(claims, "email claims are consumed by the email field")

	stamp, err := s.store.GetSecurityStamp(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal([]sts.Claim{sts.NewClaim(sts.ClaimSecurityStamp, stamp)}, result.Claims)

	s.Equal([]sts.AuthOutcome{sts.OutcomeAccountCreated}, s.sink.outcomes(sts.ActivityEventAccountCreated))
	s.Equal([]sts.AuthOutcome{sts.OutcomeAccountCreated}, s.sink.outcomes(sts.ActivityEventExternalLogin))
}

func (s *UserServiceSuite) TestReturningExternalIdentitySignsIn() {
	first := s.authenticateExternal(google("abc123", sts.NewClaim("locale", "en")))
	s.Require().NotNil(first)

	second := s.authenticateExternal(google("abc123", sts.NewClaim("locale", "en")))
	s.Require().NotNil(second)
	s.Equal(first.SubjectID, second.SubjectID)

	s.Equal([]sts.AuthOutcome{sts.OutcomeAccountCreated, sts.OutcomeSucceeded},
		s.sink.outcomes(sts.ActivityEventExternalLogin))
	s.Len(s.sink.outcomes(sts.ActivityEventAccountCreated), 1)

	claims, err := s.store.GetClaims(s.ctx, first.SubjectID)
	s.Require().NoError(err)
	s.Equal([]sts.Claim{sts.NewClaim("locale", "en")}, claims)
}

func (s *UserServiceSuite) TestProviderNamesIgnoreCase() {
	first := s.authenticateExternal(google("abc123"))
	s.Require().NotNil(first)

	ec := google("abc123")
	ec.ExternalIdentity.Provider = "Google"
	second := s.authenticateExternal(ec)
	s.Require().NotNil(second)
	s.Equal(first.SubjectID, second.SubjectID)
}

func (s *UserServiceSuite) TestExistingUserResolverLinksAccount() {
	s.svc = s.newService(sts.WithExistingUserResolver(
		func(ctx context.Context, _ string, claims []sts.Claim) (*memstore.User, bool, error) {
			email, ok := sts.FindClaim(claims, sts.ClaimEmail)
			if !ok {
				return nil, false, nil
			}
			return s.store.FindByUserName(ctx, email.Value)
		}))

	result := s.authenticateExternal(google("g-alice",
		sts.NewClaim(sts.ClaimEmail, "alice@example.com"),
		sts.NewClaim(sts.ClaimEmailVerified, "true"),
	))
	s.Require().NotNil(result)
	s.Equal(s.alice.ID, result.SubjectID)
	s.Empty(s.sink.outcomes(sts.ActivityEventAccountCreated))

	// the asserted email is already alice's email, so no email claims are stored
	claims, err := s.store.GetClaims(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.NotContains(claims, sts.NewClaim(sts.ClaimEmail, "alice@example.com"))
	s.NotContains(claims, sts.NewClaim(sts.ClaimEmailVerified, "true"))

	// a second provider of the same kind cannot be linked to alice
	failed := s.authenticateExternal(google("g-alice-2", sts.NewClaim(sts.ClaimEmail, "alice@example.com")))
	s.Require().NotNil(failed)
	s.True(failed.IsError())
	s.Equal(sts.MsgDuplicateExternalLogin, failed.ErrorMessage)
	s.Equal(sts.OutcomeLinkFailed, s.sink.last().Outcome)
}

func (s *UserServiceSuite) TestDuplicateUserNameFailsCreation() {
	s.svc = s.newService(sts.WithNewUserFactory(
		func(context.Context, sts.ExternalIdentity) (*memstore.User, error) {
			return &memstore.User{UserName: "Alice@Example.com"}, nil
		}))

	result := s.authenticateExternal(google("abc123"))
	s.Require().NotNil(result)
	s.True(result.IsError())
	s.Equal(sts.MsgDuplicateUserName, result.ErrorMessage)
	s.Equal(sts.OutcomeCreateFailed, s.sink.last().Outcome)

	_, found, err := s.store.FindByLogin(s.ctx, sts.NewExternalLogin("google", "abc123"))
	s.Require().NoError(err)
	s.False(found)
}

func (s *UserServiceSuite) TestReconcileExternalClaimsIsIdempotent() {
	asserted := []sts.Claim{
		sts.NewClaim(sts.ClaimEmail, "other@example.com"),
		sts.NewClaim("locale", "en"),
		sts.NewClaim(sts.ClaimGivenName, "Alice"),
		sts.NewClaim("locale", "en"),
	}

	added, res, err := s.svc.ReconcileExternalClaims(s.ctx, s.alice.ID, asserted)
	s.Require().NoError(err)
	s.True(res.Succeeded)
	s.Equal([]sts.Claim{
		sts.NewClaim(sts.ClaimEmail, "other@example.com"),
		sts.NewClaim("locale", "en"),
	}, added)

	added, res, err = s.svc.ReconcileExternalClaims(s.ctx, s.alice.ID, asserted)
	s.Require().NoError(err)
	s.True(res.Succeeded)
	s.Empty(added)

	email, err := s.store.GetEmail(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal("alice@example.com", email, "existing email is never overwritten")
}

func (s *UserServiceSuite) TestReconcileExternalClaimsSetsEmailOnce() {
	res, err := s.store.Create(s.ctx, &memstore.User{ID: "bob-id", UserName: "bob"})
	s.Require().NoError(err)
	s.Require().True(res.Succeeded)

	asserted := []sts.Claim{
		sts.NewClaim(sts.ClaimEmail, "b@x.com"),
		sts.NewClaim(sts.ClaimEmailVerified, "true"),
		sts.NewClaim("locale", "en"),
	}

	added, res, err := s.svc.ReconcileExternalClaims(s.ctx, "bob-id", asserted)
	s.Require().NoError(err)
	s.True(res.Succeeded)
	s.Equal([]sts.Claim{sts.NewClaim("locale", "en")}, added)

	replay := []sts.Claim{
		sts.NewClaim(sts.ClaimEmail, "B@X.com"),
		sts.NewClaim(sts.ClaimEmailVerified, "true"),
		sts.NewClaim("locale", "en"),
	}
	added, res, err = s.svc.ReconcileExternalClaims(s.ctx, "bob-id", replay)
	s.Require().NoError(err)
	s.True(res.Succeeded)
	s.Empty(added)

	req := &sts.ProfileDataRequest{Subject: sts.NewSubject("bob-id")}
	s.Require().NoError(s.svc.GetProfileData(s.ctx, req))
	emails := sts.FilterClaims(req.IssuedClaims, []string{sts.ClaimEmail})
	s.Equal([]sts.Claim{sts.NewClaim(sts.ClaimEmail, "b@x.com")}, emails)
	s.Empty(sts.FilterClaims(req.IssuedClaims, []string{sts.ClaimEmailVerified}))
}

func TestAuthenticateExternalStoreFailures(t *testing.T) {
	ctx := context.Background()
	login := sts.NewExternalLogin("github", "42")

	t.Run("find by login failure", func(t *testing.T) {
		store := new(MockUserStore)
		sink := &recordingSink{}
		store.On("FindByLogin", mock.Anything, login).Return(nil, false, errors.New("timeout"))

		svc := newMockService(t, store, sink)
		ec := &sts.ExternalAuthenticationContext{ExternalIdentity: &sts.ExternalIdentity{Provider: "github", ProviderID: "42"}}
		err := svc.AuthenticateExternal(ctx, ec)
		assert.Error(t, err)
		assert.Nil(t, ec.AuthenticateResult)
		assert.Equal(t, sts.OutcomeStoreError, sink.last().Outcome)
	})

	t.Run("new account on a store without claims or email", func(t *testing.T) {
		store := new(MockUserStore)
		created := &testUser{ID: 11, UserName: "github-42"}
		store.On("FindByLogin", mock.Anything, login).Return(nil, false, nil)
		store.On("Create", mock.Anything, &testUser{UserName: "github-42"}).Return(sts.Success(), nil)
		store.On("FindByUserName", mock.Anything, "github-42").Return(created, true, nil)
		store.On("AddLogin", mock.Anything, int64(11), login).Return(sts.Success(), nil)
		store.On("FindByID", mock.Anything, int64(11)).Return(created, true, nil)

		svc := newMockService(t, store, &recordingSink{})
		ec := &sts.ExternalAuthenticationContext{ExternalIdentity: &sts.ExternalIdentity{
			Provider:   "github",
			ProviderID: "42",
			Claims:     []sts.Claim{sts.NewClaim(sts.ClaimEmail, "x@example.com")},
		}}
		require.NoError(t, svc.AuthenticateExternal(ctx, ec))
		require.NotNil(t, ec.AuthenticateResult)
		assert.Equal(t, "11", ec.AuthenticateResult.SubjectID)
		assert.Equal(t, "github", ec.AuthenticateResult.IdentityProvider)
		store.AssertExpectations(t)
	})

	t.Run("link failure is reported on the result", func(t *testing.T) {
		store := new(MockUserStore)
		created := &testUser{ID: 11, UserName: "github-42"}
		store.On("FindByLogin", mock.Anything, login).Return(nil, false, nil)
		store.On("Create", mock.Anything, mock.Anything).Return(sts.Success(), nil)
		store.On("FindByUserName", mock.Anything, "github-42").Return(created, true, nil)
		store.On("AddLogin", mock.Anything, int64(11), login).Return(sts.Failed(sts.MsgDuplicateExternalLogin), nil)

		svc := newMockService(t, store, &recordingSink{})
		ec := &sts.ExternalAuthenticationContext{ExternalIdentity: &sts.ExternalIdentity{Provider: "github", ProviderID: "42"}}
		require.NoError(t, svc.AuthenticateExternal(ctx, ec))
		require.NotNil(t, ec.AuthenticateResult)
		assert.Equal(t, sts.MsgDuplicateExternalLogin, ec.AuthenticateResult.ErrorMessage)
		store.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}
