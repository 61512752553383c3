// Package main hosts the cadenza CLI.
//
// The command tree loads configuration once, builds the rate-limited source
// adapters and hands a listing to the matcher. Matching, ranking and
// persistence live in internal packages; commands here only wire them and
// render their output.
package main
