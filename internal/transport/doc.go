// Package transport builds the HTTP clients used to reach the account
// gateway and public channel pages.
//
// Three modes are supported: a direct connection, an external SOCKS5 proxy,
// or a private Tor daemon started with tornago for the lifetime of the
// process.
package transport
