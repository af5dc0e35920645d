// Package cli constructs the mono2repo command-line interface. It wires the
// Cobra root command, the create and update synchronization commands, the
// layered configuration loader, and structured logging.
package cli
