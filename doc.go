// Package social connects user accounts on social networks and publishes
// content through a uniform adapter contract.
//
// Adapters:
//   - Adapter is implemented once per network under platforms/. Each embeds
//     BaseAdapter for limit validation, error decoration, analytics
//     degradation and the bounded HTTP client. Handshake differences (PKCE,
//     Basic auth token endpoints, short to long lived exchanges) stay inside
//     the concrete adapter.
//   - Registry is built once at startup (see platforms/registry) and passed to
//     whatever needs lookup. Consumers never import a concrete adapter.
//
// Credentials:
//   - CredentialResolver prefers the persisted OAuthConfig over the
//     environment and caches results for DefaultCredentialsTTL. Call
//     ClearCache after writing credentials, SaveConfig does it for you.
//   - Secrets at rest go through a Cipher, see the secretbox package for the
//     AES-256-GCM implementation.
//
// OAuth flow:
//   - OAuthManager persists the state issued by GenerateAuthURL and rejects
//     callbacks whose state is missing, expired, reused or bound to another
//     platform, user or redirect URI.
//   - Authenticate never returns a Go error, failures surface in AuthResult.
//   - Refresh failures are recorded on the account rows (last error, time and
//     retry count) and never deactivate the account.
package social
