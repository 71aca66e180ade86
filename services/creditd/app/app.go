package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"ghostcredit/config"
	"ghostcredit/core/state"
	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/bank"
	"ghostcredit/native/common"
	"ghostcredit/native/credit"
	"ghostcredit/native/oracle"
	"ghostcredit/native/params"
	"ghostcredit/native/vault"
	"ghostcredit/observability"
	"ghostcredit/storage"
)

var genesisKey = []byte("app/genesis")

// App wires the ledger, the vaults and the credit registry over one state
// manager. Reads take a shared lock; writes commit before releasing it.
type App struct {
	mu sync.RWMutex

	state    *state.Manager
	ledger   *bank.Ledger
	router   *bank.Router
	params   *params.Store
	oracle   *oracle.Static
	registry *credit.Registry
	vaults   map[string]*vault.Engine
	denoms   []string
	logger   *slog.Logger
}

// New builds the engines described by g on top of db. State is not touched
// until InitGenesis.
func New(db storage.Database, g *config.Genesis, logger *slog.Logger) (*App, error) {
	if db == nil {
		return nil, errors.New("app: database required")
	}
	if g == nil {
		return nil, errors.New("app: genesis required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	registryAddr, err := g.Registry()
	if err != nil {
		return nil, fmt.Errorf("registry address: %w", err)
	}
	prices, err := g.PriceTable()
	if err != nil {
		return nil, err
	}
	quotes, err := oracle.NewStatic(prices)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	a := &App{
		state:  state.NewManager(db),
		router: bank.NewRouter(),
		oracle: quotes,
		vaults: make(map[string]*vault.Engine, len(g.Vaults)),
		logger: logger.With("component", "creditd.app"),
	}
	emitter := observability.CountingEmitter{}
	a.ledger = bank.NewLedger(a.state)
	a.ledger.SetEmitter(emitter)
	a.params = params.NewStore(a.state)

	a.registry = credit.NewRegistry(registryAddr)
	a.registry.SetState(a.state)
	a.registry.SetParams(a.params)
	a.registry.SetCustody(bank.NewCustody(a.ledger, a.router))
	a.registry.SetOracle(a.oracle)
	a.registry.SetPauses(a.params)
	a.registry.SetEmitter(emitter)
	a.registry.SetLogger(logger)

	for _, vg := range g.Vaults {
		addr, err := vg.VaultAddress()
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", vg.Denom, err)
		}
		engine := vault.NewEngine(vg.Denom, addr)
		engine.SetState(a.state)
		engine.SetParams(a.params)
		engine.SetBank(a.ledger)
		engine.SetPauses(a.params)
		engine.SetEmitter(emitter)
		engine.SetLogger(logger)
		if err := a.registry.RegisterVault(engine); err != nil {
			return nil, fmt.Errorf("register vault %s: %w", vg.Denom, err)
		}
		a.vaults[vg.Denom] = engine
		a.denoms = append(a.denoms, vg.Denom)
	}
	sort.Strings(a.denoms)
	return a, nil
}

// Router exposes the execute-target router so callers can register handlers.
func (a *App) Router() *bank.Router { return a.router }

// Registry returns the credit registry.
func (a *App) Registry() *credit.Registry { return a.registry }

// Vault returns the engine for denom.
func (a *App) Vault(denom string) (*vault.Engine, bool) {
	engine, ok := a.vaults[denom]
	return engine, ok
}

// InitGenesis writes the genesis state once. A database that already carries
// it is left alone and false is returned.
func (a *App) InitGenesis(g *config.Genesis) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var marker uint64
	applied, err := a.state.KVGet(genesisKey, &marker)
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	if err := a.applyGenesis(g); err != nil {
		a.state.Discard()
		return false, err
	}
	if err := a.state.KVPut(genesisKey, uint64(1)); err != nil {
		a.state.Discard()
		return false, err
	}
	if err := a.state.Commit(); err != nil {
		return false, fmt.Errorf("commit genesis: %w", err)
	}
	a.logger.Info("genesis applied",
		"vaults", len(g.Vaults),
		"collateral", len(g.CollateralRatios),
		"accounts", len(g.Accounts))
	return true, nil
}

func (a *App) applyGenesis(g *config.Genesis) error {
	creditCfg, err := g.CreditConfig()
	if err != nil {
		return err
	}
	if err := a.params.SetCreditConfig(creditCfg); err != nil {
		return err
	}
	for _, vg := range g.Vaults {
		cfg, err := vg.VaultConfig()
		if err != nil {
			return err
		}
		if err := a.params.SetVaultConfig(vg.Denom, cfg); err != nil {
			return err
		}
		borrowers, err := vg.BorrowerLimits()
		if err != nil {
			return err
		}
		engine := a.vaults[vg.Denom]
		for _, b := range borrowers {
			if err := engine.SetBorrowerLimit(b.Address, b.Limit); err != nil {
				return fmt.Errorf("vault %s: borrower %s: %w", vg.Denom, b.Address, err)
			}
		}
	}
	ratios, err := g.Collateral()
	if err != nil {
		return err
	}
	for _, r := range ratios {
		if err := a.registry.SetCollateralRatio(r.Denom, r.Ratio); err != nil {
			return fmt.Errorf("collateral %s: %w", r.Denom, err)
		}
	}
	balances, err := g.OpeningBalances()
	if err != nil {
		return err
	}
	for _, b := range balances {
		if b.Amount.Sign() == 0 {
			continue
		}
		if err := a.ledger.Mint(b.Address, types.NewCoin(b.Denom, b.Amount)); err != nil {
			return fmt.Errorf("balance %s %s: %w", b.Address, b.Denom, err)
		}
	}
	for i, acct := range g.Accounts {
		owner, err := crypto.DecodeAddress(acct.Owner)
		if err != nil {
			return fmt.Errorf("Accounts[%d]: %w", i, err)
		}
		if _, err := a.registry.CreateAccount(owner, acct.Tag); err != nil {
			return fmt.Errorf("Accounts[%d]: %w", i, err)
		}
	}
	// Pauses go last so the writes above are not rejected.
	pauses := make(common.Pauses, len(g.Pauses))
	for module, paused := range g.Pauses {
		pauses[module] = paused
	}
	return a.params.SetPauses(pauses)
}

// Update runs fn under the write lock and commits its writes. Any error
// discards them.
func (a *App) Update(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := fn(); err != nil {
		a.state.Discard()
		return err
	}
	return a.state.Commit()
}

// View runs fn under the read lock.
func (a *App) View(fn func() error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fn()
}

// Denoms lists the vault denoms in order.
func (a *App) Denoms() []string { return append([]string(nil), a.denoms...) }

// Price quotes denom from the static oracle.
func (a *App) Price(denom string) (sdkmath.LegacyDec, error) { return a.oracle.Price(denom) }

// Balances returns the ledger balances of addr.
func (a *App) Balances(addr crypto.Address) (types.Coins, error) { return a.ledger.Balances(addr) }

// Paused reports the module pause flags.
func (a *App) Paused() (common.Pauses, error) { return a.params.Pauses() }
