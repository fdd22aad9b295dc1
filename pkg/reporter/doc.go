// Package reporter delivers task lifecycle messages to the master with
// bounded retry and forwards task alerts to the alert service.
package reporter
