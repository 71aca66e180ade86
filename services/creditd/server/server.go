package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ghostcredit/core/types"
	"ghostcredit/crypto"
	"ghostcredit/native/common"
	"ghostcredit/native/credit"
	"ghostcredit/native/vault"
	"ghostcredit/services/creditd/app"
	"ghostcredit/services/creditd/middleware"
)

// Rate limit groups.
const (
	GroupAccounts = "accounts"
	GroupVaults   = "vaults"
)

// Config captures the optional collaborators of the HTTP API.
type Config struct {
	PageSize      uint32
	Auth          *middleware.TokenAuth
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Logger        *slog.Logger
}

// Server exposes the credit registry and the vaults over read-mostly HTTP.
type Server struct {
	app      *app.App
	pageSize uint32
	logger   *slog.Logger
	router   http.Handler
}

// New constructs the server and its router.
func New(a *app.App, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PageSize == 0 || cfg.PageSize > credit.MaxPageSize {
		cfg.PageSize = credit.DefaultPageSize
	}
	if cfg.Auth == nil {
		cfg.Auth = middleware.NewTokenAuth(nil, true, cfg.Logger)
	}
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = middleware.NewRateLimiter(nil, cfg.Logger)
	}
	if cfg.Observability == nil {
		cfg.Observability = middleware.NewObservability(middleware.ObservabilityConfig{}, cfg.Logger)
	}
	srv := &Server{
		app:      a,
		pageSize: cfg.PageSize,
		logger:   cfg.Logger.With("component", "creditd.server"),
	}
	srv.router = srv.buildRouter(cfg)
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cfg.Observability.Middleware)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(cfg.Auth.Middleware)

		api.Group(func(accounts chi.Router) {
			accounts.Use(cfg.RateLimiter.Middleware(GroupAccounts))
			accounts.Get("/accounts", s.ListAccounts)
			accounts.Get("/accounts/{address}", s.GetAccount)
			accounts.Get("/accounts/{address}/liquidation", s.GetLiquidation)
			accounts.Post("/accounts/{address}/sync", s.SyncAccount)
			accounts.Get("/owners/{owner}/accounts", s.ListOwnerAccounts)
		})
		api.Group(func(vaults chi.Router) {
			vaults.Use(cfg.RateLimiter.Middleware(GroupVaults))
			vaults.Get("/vaults", s.ListVaults)
			vaults.Get("/vaults/{denom}", s.GetVault)
			vaults.Get("/vaults/{denom}/borrowers", s.ListBorrowers)
			vaults.Get("/collateral", s.ListCollateral)
			vaults.Get("/config", s.GetConfig)
		})
	})

	return otelhttp.NewHandler(r, "creditd")
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type accountsPage struct {
	Accounts []credit.AccountRecord `json:"accounts"`
	Next     string                 `json:"next,omitempty"`
}

func newAccountsPage(recs []credit.AccountRecord, next crypto.Address) accountsPage {
	page := accountsPage{Accounts: recs}
	if page.Accounts == nil {
		page.Accounts = []credit.AccountRecord{}
	}
	if !next.IsZero() {
		page.Next = next.String()
	}
	return page
}

// ListAccounts pages through every account.
func (s *Server) ListAccounts(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	var page accountsPage
	err := s.app.View(func() error {
		recs, next, err := s.app.Registry().Accounts(cursor, limit)
		page = newAccountsPage(recs, next)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListOwnerAccounts pages through the accounts of one owner, optionally
// narrowed by ?tag=.
func (s *Server) ListOwnerAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	cursor, limit, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	tag := r.URL.Query().Get("tag")
	var page accountsPage
	err := s.app.View(func() error {
		recs, next, err := s.app.Registry().AccountsByOwner(owner, tag, cursor, limit)
		page = newAccountsPage(recs, next)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type accountView struct {
	*credit.CreditAccount
	Balances           types.Coins       `json:"balances"`
	Collateral         sdkmath.LegacyDec `json:"collateral_usd"`
	CollateralAdjusted sdkmath.LegacyDec `json:"collateral_adjusted_usd"`
	Debt               sdkmath.LegacyDec `json:"debt_usd"`
	LTV                sdkmath.LegacyDec `json:"ltv"`
}

func (s *Server) accountView(addr crypto.Address) (*accountView, error) {
	acct, err := s.app.Registry().AccountStatus(addr)
	if err != nil {
		return nil, err
	}
	balances, err := s.app.Balances(addr)
	if err != nil {
		return nil, err
	}
	return &accountView{
		CreditAccount:      acct,
		Balances:           balances,
		Collateral:         acct.TotalCollateral(),
		CollateralAdjusted: acct.TotalCollateralAdjusted(),
		Debt:               acct.TotalDebt(),
		LTV:                acct.AdjustedLTV(),
	}, nil
}

// GetAccount values one account at current prices.
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var view *accountView
	err := s.app.View(func() error {
		var err error
		view, err = s.accountView(addr)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SyncAccount refreshes the collateral exposure of an account and returns
// its valuation.
func (s *Server) SyncAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	if err := s.app.Update(func() error { return s.app.Registry().SyncAccount(addr) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.GetAccount(w, r)
}

type liquidationView struct {
	Active     bool     `json:"active"`
	Liquidator string   `json:"liquidator,omitempty"`
	Phase      string   `json:"phase,omitempty"`
	Cursor     uint64   `json:"cursor"`
	Queued     int      `json:"queued"`
	Executed   uint64   `json:"executed"`
	Skipped    uint64   `json:"skipped"`
	Safe       bool     `json:"safe"`
	Failures   []string `json:"failures,omitempty"`
}

// GetLiquidation reports the in-flight liquidation of an account.
func (s *Server) GetLiquidation(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var view liquidationView
	err := s.app.View(func() error {
		if _, err := s.app.Registry().Account(addr); err != nil {
			return err
		}
		ls, active, err := s.app.Registry().LiquidationStatus(addr)
		if err != nil || !active {
			return err
		}
		view = liquidationView{
			Active:     true,
			Liquidator: ls.Liquidator.String(),
			Phase:      ls.Phase.String(),
			Cursor:     ls.Cursor,
			Queued:     len(ls.Queue),
			Executed:   ls.Executed,
			Skipped:    ls.Skipped,
			Safe:       ls.Safe,
			Failures:   ls.Failures,
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListVaults reports the status of every vault.
func (s *Server) ListVaults(w http.ResponseWriter, r *http.Request) {
	var out []interface{}
	err := s.app.View(func() error {
		for _, denom := range s.app.Denoms() {
			engine, _ := s.app.Vault(denom)
			status, err := engine.Status()
			if err != nil {
				return err
			}
			out = append(out, status)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []interface{}{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vaults": out})
}

// GetVault reports one vault.
func (s *Server) GetVault(w http.ResponseWriter, r *http.Request) {
	denom := chi.URLParam(r, "denom")
	engine, ok := s.app.Vault(denom)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown vault "+denom)
		return
	}
	var status interface{}
	err := s.app.View(func() error {
		var err error
		status, err = engine.Status()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ListBorrowers pages through the borrower table of one vault.
func (s *Server) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	denom := chi.URLParam(r, "denom")
	engine, ok := s.app.Vault(denom)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown vault "+denom)
		return
	}
	cursor, limit, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	var page borrowersPage
	err := s.app.View(func() error {
		views, next, err := engine.Borrowers(cursor, limit)
		page = borrowersPage{Denom: denom, Borrowers: views}
		if page.Borrowers == nil {
			page.Borrowers = []vault.BorrowerView{}
		}
		if !next.IsZero() {
			page.Next = next.String()
		}
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type borrowersPage struct {
	Denom     string               `json:"denom"`
	Borrowers []vault.BorrowerView `json:"borrowers"`
	Next      string               `json:"next,omitempty"`
}

type collateralView struct {
	Denom    string             `json:"denom"`
	Ratio    sdkmath.LegacyDec  `json:"ratio"`
	Price    *sdkmath.LegacyDec `json:"price,omitempty"`
	Exposure uint64             `json:"exposure"`
}

// ListCollateral reports the collateral table with prices and live exposure.
func (s *Server) ListCollateral(w http.ResponseWriter, r *http.Request) {
	out := []collateralView{}
	err := s.app.View(func() error {
		ratios, err := s.app.Registry().CollateralRatios()
		if err != nil {
			return err
		}
		for _, entry := range ratios {
			view := collateralView{Denom: entry.Denom, Ratio: entry.Ratio}
			if price, err := s.app.Price(entry.Denom); err == nil {
				view.Price = &price
			}
			if view.Exposure, err = s.app.Registry().Exposure(entry.Denom); err != nil {
				return err
			}
			out = append(out, view)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collateral": out})
}

// GetConfig reports the registry parameters and module pauses.
func (s *Server) GetConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Registry string        `json:"registry"`
		Credit   credit.Config `json:"credit"`
		Pauses   common.Pauses `json:"pauses"`
		Vaults   []string      `json:"vaults"`
	}
	err := s.app.View(func() error {
		cfg, err := s.app.Registry().Config()
		if err != nil {
			return err
		}
		pauses, err := s.app.Paused()
		if err != nil {
			return err
		}
		body.Registry = s.app.Registry().Address().String()
		body.Credit = cfg
		body.Pauses = pauses
		body.Vaults = s.app.Denoms()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (crypto.Address, uint32, bool) {
	query := r.URL.Query()
	var cursor crypto.Address
	if raw := strings.TrimSpace(query.Get("cursor")); raw != "" {
		decoded, err := crypto.DecodeAddress(raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid cursor")
			return crypto.Address{}, 0, false
		}
		cursor = decoded
	}
	limit := s.pageSize
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid limit")
			return crypto.Address{}, 0, false
		}
		if parsed > 0 && parsed < uint64(s.pageSize) {
			limit = uint32(parsed)
		}
	}
	return cursor, limit, true
}

func pathAddress(w http.ResponseWriter, r *http.Request, param string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, param))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid "+param)
		return crypto.Address{}, false
	}
	return addr, true
}

// StatusOf maps a registered error code to an HTTP status.
func StatusOf(err error) int {
	switch common.CodeOf(err) {
	case nil:
		return http.StatusInternalServerError
	case common.ErrNotFound:
		return http.StatusNotFound
	case common.ErrValidation, common.ErrZeroAmount:
		return http.StatusBadRequest
	case common.ErrUnauthorized:
		return http.StatusForbidden
	case common.ErrPaused:
		return http.StatusServiceUnavailable
	case common.ErrCapacityExceeded, common.ErrLiveExposure:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"route", r.URL.Path,
			"request_id", middleware.RequestIDFrom(r.Context()),
			"error", err)
	}
	body := map[string]interface{}{"error": err.Error()}
	if code := common.CodeOf(err); code != nil {
		body["code"] = code.ABCICode()
	}
	writeJSON(w, status, body)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
