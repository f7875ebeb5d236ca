// Package main runs the nyx signaling relay.
//
// The relay serves the API described in package relay from memory: call
// records with their ICE candidates, and public profiles. Watches are
// websocket streams. All state is lost on exit; calls are short-lived and
// clients publish their profile again when they start listening.
//
// Flags
//
//	--listen         API address (default :8080)
//	--metrics        Prometheus /metrics address; empty disables it
//	--log-file       log file; stdout if empty
//	--log-level      ERROR, WARNING, NOTICE, INFO or DEBUG
//
// SIGHUP reopens the log file for rotation. SIGINT and SIGTERM shut the
// relay down gracefully.
//
// The relay never sees plaintext or private keys. It does see who calls
// whom, so run it on infrastructure you trust with that metadata.
package main
