// Package platform talks to the messaging platform on behalf of the crawler.
//
// The crawler only sees two small interfaces: Client opens a Session and a
// Session returns the recommended ("similar") channels of one channel. Every
// failure is reported as a *FetchError carrying an ErrorClass so the crawler
// can decide between waiting, backing off and giving up.
//
// GatewayClient is the production adapter. It speaks a small JSON protocol to
// a self-hosted account gateway that holds the user login. Interactive login
// steps (login code, two-factor password) are delegated to an Authenticator.
//
// ProfileEnricher reads the public channel preview page to fill in member
// counts the gateway did not return.
package platform
