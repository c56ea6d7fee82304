// Package behavior derives trial intervals, position traces and lick events
// from processed virtual-reality session data.
package behavior
