// Package snapshot writes and loads point-in-time copies of the record
// store. A snapshot holds every stored key and value together with the
// journal sequence it reflects, so the journal before that sequence can
// be dropped.
package snapshot
