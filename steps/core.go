package steps

import (
	"context"
	"os"

	"github.com/kbukum/vaultflow/step"
)

// RegisterCore registers echo and health_check.
func RegisterCore(reg *step.Registry, deps *Deps) error {
	return register(reg, map[string]step.Func{
		"echo":         echo,
		"health_check": deps.healthCheck,
	})
}

// echo stores its "msg" parameter as last_msg.
func echo(_ context.Context, params step.Params, _ step.Context) (step.Context, error) {
	return step.Context{"last_msg": params["msg"]}, nil
}

// healthCheck verifies the vault directory and checks external services.
// ok is false when any check fails.
func (d *Deps) healthCheck(ctx context.Context, _ step.Params, _ step.Context) (step.Context, error) {
	issues := []string{}
	if d.Vault == nil {
		issues = append(issues, "vault: not configured")
	} else if err := os.MkdirAll(d.Vault.Root(), 0o750); err != nil {
		issues = append(issues, "vault: "+err.Error())
	}
	for _, name := range sortedKeys(d.Services) {
		if err := d.Services[name].Ready(ctx); err != nil {
			issues = append(issues, name+": "+err.Error())
		}
	}
	return step.Context{
		"ok":        len(issues) == 0,
		"issues":    issues,
		"timestamp": d.now().Format(stampLayout),
	}, nil
}
