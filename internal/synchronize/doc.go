// Package synchronize extracts one subdirectory's history from a source repository and replays it
// onto a standalone destination repository.
//
// A run clones the source into a scratch workspace, filters the clone down to the subdirectory,
// attaches the filtered clone to the destination as a temporary remote, fetches it into the migrate
// branch and rebases that branch onto the destination mainline. The create protocol seeds a new
// destination with an empty commit dated at the earliest filtered commit; the update protocol reuses
// an existing destination and recreates the migrate branch so repeated runs converge.
package synchronize
