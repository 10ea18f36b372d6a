// Package input turns raw channel lists into validated identifiers.
//
// Lists come from CLI arguments, API requests or files. Files may be plain
// text (one identifier per line), CSV (first column) or JSON (an array of
// strings or an object with a "channels" array). Validate normalizes the
// entries, drops invalid ones and removes case-insensitive duplicates.
package input
