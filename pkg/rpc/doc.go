/*
Package rpc carries the Kafka messaging between a worker and its masters.

Masters publish task dispatches to a dispatch topic that every worker group
consumes; workers publish lifecycle status messages, alerts, and heartbeats
back on their respective topics. Every outbound message carries a uuid so
the master side can deduplicate the at-least-once delivery the status
reporter provides.
*/
package rpc
