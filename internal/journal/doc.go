// Package journal keeps a local SQLite record of every report the command
// handlers produce, so feature state survives a restart.
//
// The router writes through Journal.Record after each publish. At start-up
// Restore feeds the latest recorded value of each feature back into its
// handler without actuating or publishing.
package journal
