// Package auth provides account, organization and project authorization:
// signed purpose-bound tokens, trust levels derived from session age,
// membership checks and the services built on top of them.
//
// Tokens:
//   - TokenCodec signs HS512 JWTs with a single secret. The five providers in
//     TokenProviders each hold their own secret so a token minted for one
//     purpose never verifies as another. Email change tokens are bound to a
//     numeric code handed to the requester separately.
//
// Request identity:
//   - AuthenticationGate turns an Authorization header into a RequestIdentity
//     with ROLE_USER and the ROLE_STL_* tiers that match the age of the
//     session. Its Middleware stores the identity in router locals and in the
//     request context.
//
// Authority:
//   - AuthorizeMember runs the membership lookup and the owner or role check
//     for organizations and projects. Every failure reads as ErrForbidden.
//
// Timeout gate:
//   - TimeoutGate rate limits side effects such as recovery mails with keys
//     stored in a CacheStore, either process memory or Redis (see cache/).
//
// Activity sinks:
//   - ActivitySink receives signup, login, membership and deletion events.
//     Sinks run best effort, errors are logged and never fail the operation.
package auth
