// Package stores keeps the run history of supac in SQLite.
// Every state-changing invocation is a run; the operations it executed and
// the hooks it ran are recorded through Recorder, which implements
// engine.Observer. The schema is managed by embedded golang-migrate migrations.
package stores
