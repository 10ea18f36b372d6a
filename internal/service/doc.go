// Package service implements the crawl invocation used by the CLI and the
// HTTP API: validate a submitted channel list, store it, run the crawl
// synchronously and store the result.
package service
