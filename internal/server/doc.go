// Package server hosts the Fiber HTTP service and its request middleware
// chain: request IDs, CORS, the GET/HEAD method gate, access logging and
// the fixed route table that sends latest.yml to the metadata handler and
// every other download path to the local/remote pipeline.
// Status, info and metrics routes are registered by the routes subpackage;
// keep exports narrow and accept explicit dependencies.
package server
