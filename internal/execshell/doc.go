// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with zap logging and applies a
// per-call ExecutionPolicy: abort, tolerate or delegate failures to a
// callback, silence the diagnostic stream, or skip execution entirely for
// dry runs. OSCommandRunner is the os/exec backed runner. Every call spawns
// at most one process and nothing is retried.
package execshell
