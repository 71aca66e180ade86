package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"ghostcredit/native/common"
	"ghostcredit/native/credit"
	pausestate "ghostcredit/native/params/state"
	"ghostcredit/native/vault"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for governance-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

func (s *Store) put(name string, value interface{}) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", name, err)
	}
	return state.ParamStoreSet(name, encoded)
}

// get decodes the record stored under name into out. It reports false when
// nothing is stored, leaving out untouched.
func (s *Store) get(name string, out interface{}) (bool, error) {
	state, err := s.withState()
	if err != nil {
		return false, err
	}
	raw, ok, err := state.ParamStoreGet(name)
	if err != nil {
		return false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("params: decode %s: %w", name, err)
	}
	return true, nil
}

// SetPauses persists the module pause toggles. Values are marshalled as JSON
// to align with governance proposal payloads.
func (s *Store) SetPauses(pauses common.Pauses) error {
	if pauses == nil {
		pauses = common.Pauses{}
	}
	return s.put(ParamsKeyPauses, map[string]bool(pauses))
}

// Pauses loads the persisted pause toggles. When unset, nothing is paused.
func (s *Store) Pauses() (common.Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	pauses, err := pausestate.Pauses(state)
	if err != nil {
		return nil, err
	}
	return common.Pauses(pauses), nil
}

// IsPaused implements common.PauseView. A pause record that cannot be read
// pauses the module.
func (s *Store) IsPaused(module string) bool {
	state, err := s.withState()
	if err != nil {
		return false
	}
	paused, err := pausestate.Paused(state, module)
	if err != nil {
		slog.Default().Error("params: read pauses", "module", module, "error", err)
		return true
	}
	return paused
}

// SetVaultConfig persists the configuration of the vault for denom.
func (s *Store) SetVaultConfig(denom string, cfg vault.Config) error {
	return s.put(VaultKey(denom), cfg)
}

// VaultConfig loads the vault configuration for denom with defaults applied
// to any field the stored payload omits.
func (s *Store) VaultConfig(denom string) (vault.Config, error) {
	var cfg vault.Config
	if _, err := s.get(VaultKey(denom), &cfg); err != nil {
		return vault.Config{}, err
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// SetCreditConfig persists the credit registry configuration.
func (s *Store) SetCreditConfig(cfg credit.Config) error {
	return s.put(ParamsKeyCredit, cfg)
}

// CreditConfig loads the credit registry configuration with defaults applied.
func (s *Store) CreditConfig() (credit.Config, error) {
	var cfg credit.Config
	if _, err := s.get(ParamsKeyCredit, &cfg); err != nil {
		return credit.Config{}, err
	}
	cfg.EnsureDefaults()
	return cfg, nil
}
