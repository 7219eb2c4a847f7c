package steps

import (
	"fmt"
	"os"

	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/vault"
)

// readFile reads a vault-relative file as bytes.
func readFile(v *vault.Vault, rel string) ([]byte, error) {
	full, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("file", rel)
		}
		return nil, fmt.Errorf("steps: read %s: %w", rel, err)
	}
	return data, nil
}
