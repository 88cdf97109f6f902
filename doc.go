// Package sts is the identity core of an OpenID Connect / OAuth2 security
// token service. It turns authentication events into durable user records and
// canonical claim sets, and re-validates subjects on every token request.
//
// User stores:
//   - UserStore is the core contract (create, link external logins, lookups).
//     Optional interfaces add claims, roles, password checks, lockout, email,
//     security stamps and consents. Capabilities are resolved once when the
//     UserService is built; a store may narrow them via CapabilityReporter.
//   - memstore and repository provide in-memory and bun-backed stores.
//
// Claims pipeline:
//   - UserService implements IdentityService: AuthenticateLocal,
//     AuthenticateExternal, GetProfileData and IsActive. Expected failures
//     (unknown user, bad password, lockout) never surface as errors; they are
//     classified as an AuthOutcome and sent to the ActivitySink.
//   - External sign-ins create or link accounts and reconcile the asserted
//     claims once. Replaying the same assertion adds nothing.
//
// Consents:
//   - ConsentStore translates flat consent records into Consent values with a
//     parsed scope list.
package sts
