package sts

// Subject is the claims-bearing identity referenced by a token.
type Subject struct {
	ID     string  `json:"sub"`
	Claims []Claim `json:"claims,omitempty"`
}

// NewSubject builds a subject from its identifier and previously issued claims.
func NewSubject(id string, claims ...Claim) *Subject {
	return &Subject{ID: id, Claims: claims}
}

// ClaimValue returns the value of the first claim of the given type.
func (s *Subject) ClaimValue(typ string) (string, bool) {
	if s == nil {
		return "", false
	}
	c, ok := FindClaim(s.Claims, typ)
	return c.Value, ok
}

// SignInMessage carries the protocol state of an interactive sign-in.
type SignInMessage struct {
	ClientID  string   `json:"client_id,omitempty"`
	ReturnURL string   `json:"return_url,omitempty"`
	IdP       string   `json:"idp,omitempty"`
	AcrValues []string `json:"acr_values,omitempty"`
}

// AuthenticateResult is what the protocol engine turns into a session.
// A result with ErrorMessage set is a user-visible failure.
type AuthenticateResult struct {
	SubjectID            string  `json:"sub,omitempty"`
	DisplayName          string  `json:"name,omitempty"`
	Claims               []Claim `json:"claims,omitempty"`
	AuthenticationMethod string  `json:"amr,omitempty"`
	IdentityProvider     string  `json:"idp,omitempty"`
	ErrorMessage         string  `json:"error,omitempty"`
}

// IsError reports whether the result is a failure.
func (r *AuthenticateResult) IsError() bool {
	return r != nil && r.ErrorMessage != ""
}

// NewErrorResult builds a failed result.
func NewErrorResult(msg string) *AuthenticateResult {
	return &AuthenticateResult{ErrorMessage: msg}
}

// ProfileDataRequest asks for the claims to issue for a subject.
type ProfileDataRequest struct {
	Subject             *Subject
	RequestedClaimTypes []string
	ClientID            string
	IssuedClaims        []Claim
}

// LocalAuthenticationContext is the input/output of a password sign-in.
type LocalAuthenticationContext struct {
	UserName           string
	Password           string
	SignInMessage      *SignInMessage
	AuthenticateResult *AuthenticateResult
}

// ExternalIdentity is the assertion received from an external provider.
type ExternalIdentity struct {
	Provider   string  `json:"provider"`
	ProviderID string  `json:"provider_id"`
	Claims     []Claim `json:"claims,omitempty"`
}

// ExternalAuthenticationContext is the input/output of a federated sign-in.
type ExternalAuthenticationContext struct {
	ExternalIdentity   *ExternalIdentity
	SignInMessage      *SignInMessage
	AuthenticateResult *AuthenticateResult
}

// IsActiveContext asks whether a subject may still receive tokens.
type IsActiveContext struct {
	Subject  *Subject
	ClientID string
	IsActive bool
}
