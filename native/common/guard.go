package common

import errorsmod "cosmossdk.io/errors"

const (
	ModuleVault  = "vault"
	ModuleCredit = "credit"
)

type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrPaused when the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return errorsmod.Wrap(ErrPaused, module)
	}
	return nil
}

// Pauses is a static PauseView keyed by module name.
type Pauses map[string]bool

// IsPaused implements PauseView.
func (p Pauses) IsPaused(module string) bool {
	return p[module]
}
