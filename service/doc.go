// Package service is the only write entry point of the exchange. It loads
// the group and instrument records an invocation needs from the store,
// runs the invocation on the engine, journals it and commits the mutated
// records in one batch.
//
// It provides a transport-free API used by the gRPC server, the cranker
// and the reporter.
package service
