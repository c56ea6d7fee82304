// Package staging manages the scratch directories left behind by external
// spike sorter runs. Each sorted recording gets a "<stem>_sorted" directory
// under the configured sorter output_dir; they are only needed until the
// template units are imported.
package staging
