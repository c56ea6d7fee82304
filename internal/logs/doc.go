// Package logs reads back the nwbconv log file for the CLI "logs" command.
//
// It keeps memory bounded when showing the last N lines of a large log and
// can narrow the output to the lines of a single conversion run, matching
// the run_id field written by both the console and JSON handlers.
package logs
