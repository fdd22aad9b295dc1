/*
Package worker assembles and runs a Skein worker node.

The worker consumes task dispatches from the masters' Kafka dispatch topic,
validates them, and feeds them through the delay queue into the worker
pool. Lifecycle status, alerts, and heartbeats flow back on their own
topics. A gRPC health endpoint and a Prometheus metrics endpoint expose the
node's state to the outside.
*/
package worker
