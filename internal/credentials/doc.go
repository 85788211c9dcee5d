// Package credentials manages the Google OAuth2 token used by the calendar
// client.
//
// A Provider is built from the client secrets file downloaded from the Google
// Cloud console. The first authorization runs the installed-app flow with a
// loopback redirect; afterwards the stored token is refreshed on demand and
// every refreshed token is written back to the token file. The token file can
// be encrypted with a passphrase.
package credentials
