// Package report contains the pure report identity model: test number
// normalization, deterministic cache keys and the artifact returned by
// report generation. Nothing in this package performs I/O.
package report
