// Package gitrepo wraps a single git working tree and metadata store and exposes the
// primitives used by synchronization: init, run, check, status, clone and the git
// version gate. Every operation spawns one git process through a GitExecutor.
package gitrepo
