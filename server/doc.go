// Package server is the scheduler admin API: a Gin engine served behind
// h2c with recovery, request-id and request logging middleware.
//
// Routes registered by Admin:
//
//   - GET  /health             component health
//   - GET  /version            build information
//   - GET  /steps              registered step names
//   - GET  /jobs               scheduled jobs (scope jobs:read)
//   - GET  /jobs/:id           one job (scope jobs:read)
//   - POST /jobs/:id/trigger   fire a job now (scope jobs:trigger, rate limited)
//   - GET  /jobs/events        job state stream, when Admin.Events is set
//
// /jobs routes require a bearer token issued by package auth unless the
// admin secret is empty.
package server
