// Package server provides the HTTP status surface of the daemon.
//
// It exposes /healthz for liveness probes and /status for per-mapping mirror
// counters. The /status route sits behind the optional API-key middleware.
// The mirror engine itself owns no HTTP surface; this server only reads the
// driver's counters.
package server
