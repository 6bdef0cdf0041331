// Package ring provides the fixed-capacity circular queue used for
// deferred matching work and execution reports.
//
// Rings never grow and never overwrite: a full ring rejects Enqueue.
// The encoded form is a fixed-layout record (header plus one fixed-size
// slot per unit of capacity) so a single slot can be read without
// decoding the rest.
package ring
