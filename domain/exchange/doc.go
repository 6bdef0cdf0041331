// Package exchange ties the order book, the escrow ledger and the two
// rings together into the three invocations of a crank-driven order book:
// order admission, cancellation and the permissionless crank.
//
// An invocation works on decoded Instrument and Group values and leaves
// them mutated for the caller to encode and persist. Each invocation does
// a bounded amount of matching; work left over when the bound is reached
// is queued on the group's pending ring and finished by later cranks.
package exchange
