// Package history keeps a SQLite ledger of conversion runs so failed and
// finished conversions can be listed after the fact.
package history
