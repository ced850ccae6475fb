// Package app wires application dependencies for the CLI.
//
// It loads Config (JSON file, then flag overrides), validates it, and builds
// the spool store and the sender and receiver services from it, exposing
// them via the App struct for commands to use.
package app
