// Package app wires configuration, logging, telemetry and the stores into the
// commands of the tac binary.
//
// An Application is created once per command invocation. Batch commands go
// through RunPipeline, which records the run in the ledger and executes the
// selected steps with the operations runner. Serve runs the read-only browser
// API until its context is cancelled. Close flushes telemetry and writes the
// metrics textfile.
package app
