// Package database provides SQLite-based storage for tgsimilar.
//
// The Store keeps:
//   - the submitted channel list (a single slot, last write wins)
//   - the last crawl result (a single slot pointing at a run)
//   - the history of crawl runs and the channels each one discovered
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file and the binary cross-compiles.
package database
