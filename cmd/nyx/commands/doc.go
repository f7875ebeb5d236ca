// Package commands defines the nyx CLI and wires dependencies for subcommands.
//
// Commands
//
//   - create           Create an identity and print its recovery phrase
//   - restore          Restore an identity from a recovery phrase or hex key
//   - whoami           Print the local profile
//   - phrase           Print the recovery phrase
//   - export-key       Print the raw key as hex
//   - send             Send an encrypted message, optionally as a reply
//   - inbox            Print a conversation and mark it read; -f follows it
//   - chats            List conversations with unread counts
//   - react            React to a message
//   - typing           Set or clear the typing marker
//   - encrypt          Seal a message for a peer without sending it
//   - decrypt          Open a message envelope from a peer
//   - attach           Seal, upload and send a file
//   - open-attachment  Download and open a file a peer sent
//   - block, unblock   Edit the block list
//   - blocked          Print the block list
//   - call             Call a peer and stay on the line until hang-up
//   - listen           Wait for incoming calls
//
// # Implementation
//
// The root command loads nyx.toml from the home directory and builds the
// dependency graph (store, relay client, blob store, services) before any
// subcommand runs. The passphrase comes from -p or $NYX_PASSPHRASE.
package commands
