package sts

// Claim types used by the pipeline.
const (
	ClaimSubject           = "sub"
	ClaimName              = "name"
	ClaimPreferredUserName = "preferred_username"
	ClaimGivenName         = "given_name"
	ClaimFamilyName        = "family_name"
	ClaimEmail             = "email"
	ClaimEmailVerified     = "email_verified"
	ClaimRole              = "role"
	ClaimSecurityStamp     = "security_stamp"
	ClaimIdentityProvider  = "idp"

	// ClaimWSName is the WS-Federation name claim some providers still emit.
	ClaimWSName = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
)

// Authentication methods reported on AuthenticateResult.
const (
	AuthMethodPassword = "password"
	AuthMethodExternal = "external"
)

// Claim is a (type, value) fact about a subject. Claims compare by value.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewClaim builds a claim.
func NewClaim(typ, value string) Claim {
	return Claim{Type: typ, Value: value}
}

// Equal reports whether both claims have the same type and value.
func (c Claim) Equal(o Claim) bool {
	return c.Type == o.Type && c.Value == o.Value
}

// ContainsClaim reports whether claims holds c.
func ContainsClaim(claims []Claim, c Claim) bool {
	for _, existing := range claims {
		if existing.Equal(c) {
			return true
		}
	}
	return false
}

// ClaimsExcept returns the distinct claims of b that are not present in a,
// preserving the order of b.
func ClaimsExcept(b, a []Claim) []Claim {
	seen := make(map[Claim]struct{}, len(a)+len(b))
	for _, c := range a {
		seen[c] = struct{}{}
	}

	out := make([]Claim, 0, len(b))
	for _, c := range b {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// MergeClaims returns a followed by the claims of b not already in a.
func MergeClaims(a, b []Claim) []Claim {
	out := make([]Claim, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, ClaimsExcept(b, a)...)
}

// FindClaim returns the first claim with the given type.
func FindClaim(claims []Claim, typ string) (Claim, bool) {
	for _, c := range claims {
		if c.Type == typ {
			return c, true
		}
	}
	return Claim{}, false
}

// FilterClaims keeps the claims whose type is listed in types. An empty
// filter returns claims unchanged.
func FilterClaims(claims []Claim, types []string) []Claim {
	if len(types) == 0 {
		return claims
	}

	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}

	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := allowed[c.Type]; ok {
			out = append(out, c)
		}
	}
	return out
}

// WithoutClaimTypes drops every claim whose type is listed.
func WithoutClaimTypes(claims []Claim, types ...string) []Claim {
	out := make([]Claim, 0, len(claims))
outer:
	for _, c := range claims {
		for _, t := range types {
			if c.Type == t {
				continue outer
			}
		}
		out = append(out, c)
	}
	return out
}
