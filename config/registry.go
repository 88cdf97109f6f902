package config

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	sts "github.com/goliatone/go-sts"
)

// Protocol flows supported for clients.
const (
	FlowImplicit          = "implicit"
	FlowAuthorizationCode = "authorization_code"
	FlowHybrid            = "hybrid"
)

// Scope types.
const (
	ScopeTypeIdentity = "identity"
	ScopeTypeResource = "resource"
)

// Standard identity scope names.
const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
	ScopeAPI     = "api"
)

// Client is a relying party allowed to request tokens.
type Client struct {
	ID                     string   `json:"client_id"`
	Name                   string   `json:"client_name,omitempty"`
	Enabled                bool     `json:"enabled"`
	Flow                   string   `json:"flow"`
	RedirectURIs           []string `json:"redirect_uris"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris,omitempty"`
	AllowAllScopes         bool     `json:"allow_all_scopes,omitempty"`
	AllowedScopes          []string `json:"allowed_scopes,omitempty"`
}

// Validate implements validation.Validatable.
func (c Client) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Flow, validation.Required, validation.In(FlowImplicit, FlowAuthorizationCode, FlowHybrid)),
		validation.Field(&c.RedirectURIs, validation.Required, validation.Each(is.URL)),
		validation.Field(&c.PostLogoutRedirectURIs, validation.Each(is.URL)),
	)
}

// AllowsScope reports whether the client may request scope.
func (c Client) AllowsScope(scope string) bool {
	if c.AllowAllScopes {
		return true
	}
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Scope groups claim types a client can request.
type Scope struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Type          string   `json:"type"`
	Claims        []string `json:"claims,omitempty"`
	AlwaysInclude bool     `json:"always_include,omitempty"`
	Enabled       bool     `json:"enabled"`
}

// Validate implements validation.Validatable.
func (s Scope) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&s.Type, validation.Required, validation.In(ScopeTypeIdentity, ScopeTypeResource)),
	)
}

// DefaultClients returns the clients registered when none are configured:
// a browser client using the implicit flow and the console client the STS
// uses to sign itself in.
func DefaultClients() []Client {
	return []Client{
		{
			ID:                     "web-spa",
			Name:                   "Web client",
			Enabled:                true,
			Flow:                   FlowImplicit,
			RedirectURIs:           []string{"http://localhost:9000/callback.html"},
			PostLogoutRedirectURIs: []string{"http://localhost:9000/"},
			AllowAllScopes:         true,
		},
		{
			ID:             "sts-console",
			Name:           "STS console",
			Enabled:        true,
			Flow:           FlowImplicit,
			RedirectURIs:   []string{"https://localhost:44301/"},
			AllowAllScopes: true,
		},
	}
}

// DefaultScopes returns openid, email (always included), profile and the
// API resource scope carrying role claims.
func DefaultScopes() []Scope {
	return []Scope{
		{
			Name:    ScopeOpenID,
			Type:    ScopeTypeIdentity,
			Claims:  []string{sts.ClaimSubject},
			Enabled: true,
		},
		{
			Name:          ScopeEmail,
			Type:          ScopeTypeIdentity,
			Claims:        []string{sts.ClaimEmail, sts.ClaimEmailVerified},
			AlwaysInclude: true,
			Enabled:       true,
		},
		{
			Name: ScopeProfile,
			Type: ScopeTypeIdentity,
			Claims: []string{
				sts.ClaimName, sts.ClaimFamilyName, sts.ClaimGivenName, "middle_name",
				"nickname", sts.ClaimPreferredUserName, "profile", "picture", "website",
				"gender", "birthdate", "zoneinfo", "locale", "updated_at",
			},
			Enabled: true,
		},
		{
			Name:        ScopeAPI,
			Description: "Access to the ticket API",
			Type:        ScopeTypeResource,
			Claims:      []string{sts.ClaimRole},
			Enabled:     true,
		},
	}
}

// FindClient returns the enabled client with id.
func FindClient(clients []Client, id string) (Client, bool) {
	for _, c := range clients {
		if c.ID == id && c.Enabled {
			return c, true
		}
	}
	return Client{}, false
}

// ClaimTypesForScopes returns the claim types of the requested scopes plus
// those of every scope marked AlwaysInclude, without duplicates. Unknown and
// disabled scopes are ignored.
func ClaimTypesForScopes(scopes []Scope, requested []string) []string {
	want := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		want[strings.TrimSpace(r)] = struct{}{}
	}

	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, s := range scopes {
		if !s.Enabled {
			continue
		}
		if _, ok := want[s.Name]; !ok && !s.AlwaysInclude {
			continue
		}
		for _, c := range s.Claims {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
