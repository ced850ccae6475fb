// Package commands defines the securecast CLI and wires dependencies for subcommands.
//
// Commands
//
//   - send          Hand a session key to receivers, multicast a file, serve repair
//   - recv          Wait for a sender, receive, repair and write the file
//   - serve-repair  Re-open the repair window for a spooled transfer
//
// # Implementation
//
// The root command loads the JSON config (if any), applies flag overrides,
// builds a slog logger and the app dependency graph before any subcommand
// runs. Commands run under a context cancelled by SIGINT/SIGTERM.
package commands
