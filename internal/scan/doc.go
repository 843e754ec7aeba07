// Package scan runs a query image against a directory tree and ranks the
// files that look like it.
//
// A Session moves through Idle, Running and then exactly one of Completed,
// Cancelled or Failed. Each file is processed by one worker in two stages:
// the perceptual hash prunes anything further than the configured Hamming
// threshold, and survivors are verified with keypoint descriptor matching.
// Files that fail to load are skipped. A cancelled session returns no
// results unless partial results were requested in the configuration.
package scan
