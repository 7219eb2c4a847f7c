// Package logger provides structured logging for vaultflow using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers carrying structured fields such as the agent id
// or the run id of a pipeline execution.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.WithComponent("scheduler")
//	log.Info("job fired", logger.Fields(logger.FieldAgentID, "daily"))
package logger
