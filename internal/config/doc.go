// Package config loads, normalizes, and validates imgmatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config value is built once per process
// and handed to every component that needs a knob: the directory walker gets
// the extension allow-list, the pipeline gets thresholds and the worker count,
// and the descriptor extractor gets its feature budget.
//
// Validation failures are reported as *Error so callers can tell a bad
// setting apart from an I/O problem.
package config
