// Package app loads the client configuration and wires the stores,
// transports and services the CLI runs on.
package app
