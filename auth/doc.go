// Package auth issues and verifies the bearer tokens that guard the
// scheduler admin API.
//
// Tokens are HMAC-signed JWTs. The subject names the caller; the scope
// claim is checked by the server before a job is triggered.
//
//	svc, err := auth.NewService(auth.Config{Secret: cfg.Server.AdminSecret})
//	token, err := svc.Generate("ops", time.Hour)
//	claims, err := svc.Parse(token)
package auth
