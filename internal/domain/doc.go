// Package domain contains the core business entities of the avatar pipeline:
// the job payload accepted from producers and the avatar record persisted
// after a successful training run. Domain types carry their own validation
// and have no dependencies on storage or transport concerns.
package domain
