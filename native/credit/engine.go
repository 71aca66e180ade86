package credit

import (
	"log/slog"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"ghostcredit/core/events"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
	"ghostcredit/observability/metrics"
)

// Registry manages credit accounts: it values their collateral against the
// debt they draw from registered vaults, gates owner operations on the
// adjusted LTV, and runs liquidations of unsafe accounts.
//
// The registry borrows from every vault under its own address and records
// each account as the delegate of that debt.
type Registry struct {
	address crypto.Address
	state   engineState
	params  configStore
	custody Custody
	oracle  Oracle
	vaults  map[string]Vault
	pauses  common.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.CreditMetrics
}

// NewRegistry constructs a registry that borrows as address.
func NewRegistry(address crypto.Address) *Registry {
	return &Registry{
		address: address,
		vaults:  make(map[string]Vault),
		emitter: events.NoopEmitter{},
		logger:  slog.Default().With(slog.String("component", "credit")),
		metrics: metrics.Credit(),
	}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state engineState) { r.state = state }

// SetParams wires the governance parameter store holding the registry config.
func (r *Registry) SetParams(params configStore) {
	if r == nil {
		return
	}
	r.params = params
}

func (r *Registry) SetCustody(custody Custody) {
	if r == nil {
		return
	}
	r.custody = custody
}

func (r *Registry) SetOracle(oracle Oracle) {
	if r == nil {
		return
	}
	r.oracle = oracle
}

func (r *Registry) SetPauses(p common.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetLogger(logger *slog.Logger) {
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger.With(slog.String("component", "credit"))
}

// RegisterVault makes v borrowable by accounts. A later registration for the
// same denom replaces the earlier one.
func (r *Registry) RegisterVault(v Vault) error {
	if r == nil || v == nil {
		return errorsmod.Wrap(common.ErrValidation, "vault required")
	}
	denom := strings.TrimSpace(v.Denom())
	if denom == "" {
		return errorsmod.Wrap(common.ErrValidation, "vault denom required")
	}
	r.vaults[denom] = v
	return nil
}

// Address returns the address the registry borrows under.
func (r *Registry) Address() crypto.Address { return r.address }

func (r *Registry) vault(denom string) (Vault, error) {
	v, ok := r.vaults[denom]
	if !ok {
		return nil, errorsmod.Wrapf(common.ErrNotFound, "no vault for %s", denom)
	}
	return v, nil
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(creditEvent{evt: event})
}

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errorsmod.Wrap(common.ErrValidation, "credit registry: state not configured")
	}
	if r.custody == nil {
		return errorsmod.Wrap(common.ErrValidation, "credit registry: custody not configured")
	}
	if r.oracle == nil {
		return errorsmod.Wrap(common.ErrValidation, "credit registry: oracle not configured")
	}
	return nil
}

// begin runs the checks shared by every mutating entry point.
func (r *Registry) begin() (Config, error) {
	if err := r.ready(); err != nil {
		return Config{}, err
	}
	if err := common.Guard(r.pauses, common.ModuleCredit); err != nil {
		return Config{}, err
	}
	return r.config()
}

// config loads the registry config. Protocol fees go to the registry address
// unless a fee address is configured.
func (r *Registry) config() (Config, error) {
	var cfg Config
	if r.params != nil {
		loaded, err := r.params.CreditConfig()
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	cfg.EnsureDefaults()
	if cfg.FeeAddress.IsZero() {
		cfg.FeeAddress = r.address
	}
	return cfg, nil
}

// Config returns the effective registry config.
func (r *Registry) Config() (Config, error) {
	if r == nil {
		return Config{}, errorsmod.Wrap(common.ErrValidation, "credit registry not configured")
	}
	return r.config()
}

// SetConfig validates and persists cfg. Lowering MaxCollateralRatios below
// the current table size is rejected.
func (r *Registry) SetConfig(cfg Config) error {
	if err := r.ready(); err != nil {
		return err
	}
	if r.params == nil {
		return errorsmod.Wrap(common.ErrValidation, "credit registry: params not configured")
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	entries, err := r.loadRatios()
	if err != nil {
		return err
	}
	if uint32(len(entries)) > cfg.MaxCollateralRatios {
		return errorsmod.Wrapf(common.ErrCapacityExceeded, "collateral ratio table holds %d entries, limit %d",
			len(entries), cfg.MaxCollateralRatios)
	}
	if err := r.params.SetCreditConfig(cfg); err != nil {
		return err
	}
	r.logger.Info("credit config updated",
		"liquidation_threshold", cfg.LiquidationThreshold.String(),
		"adjustment_threshold", cfg.AdjustmentThreshold.String(),
		"stop_on_safe", cfg.StopOnSafe())
	r.emit(NewConfigUpdatedEvent())
	return nil
}

// AccountStatus values addr at current prices.
func (r *Registry) AccountStatus(addr crypto.Address) (*CreditAccount, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rec, err := r.getAccount(addr)
	if err != nil {
		return nil, err
	}
	return r.evaluate(rec, NewPriceBook(r.oracle))
}

// SyncAccount re-evaluates addr and refreshes its exposure counters. Anyone
// may call it, typically before delisting a collateral denom.
func (r *Registry) SyncAccount(addr crypto.Address) error {
	if err := r.ready(); err != nil {
		return err
	}
	rec, err := r.getAccount(addr)
	if err != nil {
		return err
	}
	acct, err := r.evaluate(rec, NewPriceBook(r.oracle))
	if err != nil {
		return err
	}
	if err := r.syncExposure(rec, heldDenoms(acct)); err != nil {
		return err
	}
	return r.putAccount(rec)
}
