// Package cli implements the fleetwatch command-line interface.
//
// Commands fall into three groups:
//
//	fleetwatch server [--dashboard]   - run the collector (and optionally the TUI)
//	fleetwatch dashboard              - browse stored metrics
//	fleetwatch client                 - sample this machine and push to the server
//
// Local administration works directly on the config directory and the store:
//
//	fleetwatch init | list | remove <id> | admin-add <id> | admin-remove <id>
//
// Remote commands talk to a running server over the wire protocol, using this
// machine's client.json for the server address and, for admin commands, its
// device id:
//
//	fleetwatch setup | rename <name> | remote-list | remove-remote <id>
//	fleetwatch rename-remote <id> <name> | reload-remote | stop | config-set <key> <value>
//
// Every command resolves its files through one environment built from
// --config-dir, so nothing reaches for global paths.
package cli
