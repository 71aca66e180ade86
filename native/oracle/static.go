package oracle

import (
	"errors"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/native/common"
)

// PriceOracle quotes the USD price of one base unit of a denom.
type PriceOracle interface {
	Price(denom string) (sdkmath.LegacyDec, error)
}

// Static serves prices set by configuration or governance.
type Static struct {
	mu     sync.RWMutex
	prices map[string]sdkmath.LegacyDec
}

// NewStatic seeds a static oracle with prices.
func NewStatic(prices map[string]sdkmath.LegacyDec) (*Static, error) {
	s := &Static{prices: make(map[string]sdkmath.LegacyDec, len(prices))}
	for denom, price := range prices {
		if err := s.Set(denom, price); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set records the price of denom. Zero is allowed; negative prices are not.
func (s *Static) Set(denom string, price sdkmath.LegacyDec) error {
	if s == nil {
		return errorsmod.Wrap(common.ErrValidation, "oracle not configured")
	}
	denom = strings.TrimSpace(denom)
	if denom == "" {
		return errorsmod.Wrap(common.ErrValidation, "price denom required")
	}
	if price.IsNil() || price.IsNegative() {
		return errorsmod.Wrapf(common.ErrValidation, "price %s for %s", price, denom)
	}
	s.mu.Lock()
	s.prices[denom] = price
	s.mu.Unlock()
	return nil
}

// Price implements PriceOracle.
func (s *Static) Price(denom string) (sdkmath.LegacyDec, error) {
	if s == nil {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(common.ErrValidation, "oracle not configured")
	}
	s.mu.RLock()
	price, ok := s.prices[denom]
	s.mu.RUnlock()
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(common.ErrNotFound, "no price for %s", denom)
	}
	return price, nil
}

// Prices returns a copy of every configured price.
func (s *Static) Prices() map[string]sdkmath.LegacyDec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]sdkmath.LegacyDec, len(s.prices))
	for denom, price := range s.prices {
		out[denom] = price
	}
	return out
}

// Chain consults oracles in priority order and returns the first price found.
// Only ErrNotFound moves on to the next oracle; other failures are returned.
type Chain []PriceOracle

// Price implements PriceOracle.
func (c Chain) Price(denom string) (sdkmath.LegacyDec, error) {
	for _, o := range c {
		if o == nil {
			continue
		}
		price, err := o.Price(denom)
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return sdkmath.LegacyDec{}, err
		}
	}
	return sdkmath.LegacyDec{}, errorsmod.Wrapf(common.ErrNotFound, "no price for %s", denom)
}
