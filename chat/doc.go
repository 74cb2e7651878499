// Package chat connects to Twitch IRC and forwards channel messages into the
// wall's inbound queue. It is the only component that touches the chat
// transport; the rest of the system sees plain Message values.
//
// Credentials: the IRC client requires the bot username and a user OAuth
// token with the chat:read scope. If TWITCH_OAUTH_TOKEN is not provided, the
// package reuses the stored token from the oauth_tokens table for provider
// "twitch", which the oauth refresher keeps fresh. The token is re-resolved
// on every (re)connect so a refreshed token is picked up without a restart.
package chat
