// Package oauth2 obtains, stores and refreshes OAuth 2.0 access tokens for a
// desktop application using the authorization-code grant with a loopback
// redirect.
//
// # Overview
//
// A flow starts with Orchestrator.StartOAuthFlow. It builds the consent URL
// with a fresh CSRF state value, binds the loopback CallbackListener and
// returns the URL. Two background tasks follow: the listener accepts exactly
// one connection, and an awaiter receives the hand-off, verifies the state and
// drives the Exchanger, which upserts the tokens. Failures after the URL has
// been returned are only logged.
//
// Callers obtain usable tokens through LifecycleManager.EnsureValidAccessToken,
// which returns the stored token unchanged while it outlives the requested
// skew and refreshes it otherwise. The Refresher does the same on a cron
// schedule for tokens about to expire.
//
// # Flow states
//
//	idle -> auth_url_issued -> listener_started -> callback_received
//	     -> state_verified -> exchange_in_flight -> persisted | exchange_failed
//
// with the terminal branches bind_failed, no_callback and state_mismatch.
//
// # Refresh tokens
//
// A stored refresh token is kept across exchanges and refreshes unless the
// provider returns a replacement. When none was ever issued the empty
// NoRefreshToken sentinel is stored and refreshing fails with
// missing_refresh_token without contacting the provider.
package oauth2
