// Package preflight provides readiness checks for the filesystem paths and
// external tools nwbconv depends on.
//
// These checks run in two contexts:
//   - The convert and batch commands call RunAll before assembling anything.
//     If any check fails, the run stops before a half-built file is written.
//     The run history is not part of this set; an unusable database only
//     costs the ledger entry.
//   - The CLI "nwbconv check" command renders every result, including the
//     status-only checks (CheckSorterFromConfig, CheckHistoryDatabase).
//
// Checks for disabled features are skipped.
package preflight
