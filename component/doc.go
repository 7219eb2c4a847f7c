// Package component defines the lifecycle contract shared by the long-running
// parts of vaultflow: the scheduler, the admin server and the telemetry
// exporters.
//
// A Registry starts components in registration order and stops them in
// reverse order.
package component
