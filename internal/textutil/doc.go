// Package textutil holds small string helpers for building output file
// names from session metadata.
package textutil
