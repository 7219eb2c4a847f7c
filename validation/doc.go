// Package validation validates configuration structs for vaultflow.
//
// Struct tag validation goes through a shared go-playground validator that
// reports fields by their yaml names and knows two extra tags: "cron5" for a
// five-field cron expression and "timezone" for an IANA location name.
//
//	type Job struct {
//	    Schedule string `yaml:"schedule" validate:"omitempty,cron5"`
//	}
//	err := validation.Validate(job)
//
// Programmatic checks collect errors the same way:
//
//	v := validation.New()
//	v.Required("id", cfg.ID).Min("retries", cfg.Retries, 0)
//	err := v.Validate()
package validation
