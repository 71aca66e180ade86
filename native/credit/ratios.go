package credit

import (
	"math/big"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"ghostcredit/native/common"
)

// CollateralRatio is the share of a collateral's USD value that counts
// towards the adjusted LTV.
type CollateralRatio struct {
	Denom string            `json:"denom"`
	Ratio sdkmath.LegacyDec `json:"ratio"`
}

// ratioEntry is the stored form of a CollateralRatio. Ratio holds the raw
// 18-decimal integer.
type ratioEntry struct {
	Denom string
	Ratio *big.Int
}

func (e ratioEntry) ratio() sdkmath.LegacyDec {
	if e.Ratio == nil {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(e.Ratio, sdkmath.LegacyPrecision)
}

func (r *Registry) loadRatios() ([]ratioEntry, error) {
	var entries []ratioEntry
	if _, err := r.state.KVGet(ratiosKey(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Registry) putRatios(entries []ratioEntry) error {
	if len(entries) == 0 {
		if err := r.state.KVDelete(ratiosKey()); err != nil {
			return err
		}
	} else if err := r.state.KVPut(ratiosKey(), entries); err != nil {
		return err
	}
	r.metrics.SetRatioEntries(len(entries))
	return nil
}

// CollateralRatios returns the ratio table in insertion order.
func (r *Registry) CollateralRatios() ([]CollateralRatio, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	entries, err := r.loadRatios()
	if err != nil {
		return nil, err
	}
	out := make([]CollateralRatio, len(entries))
	for i, entry := range entries {
		out[i] = CollateralRatio{Denom: entry.Denom, Ratio: entry.ratio()}
	}
	return out, nil
}

// SetCollateralRatio lists denom as collateral or updates its ratio. Adding a
// new denom fails with ErrCapacityExceeded once the table holds
// MaxCollateralRatios entries.
func (r *Registry) SetCollateralRatio(denom string, ratio sdkmath.LegacyDec) error {
	if err := r.ready(); err != nil {
		return err
	}
	denom = strings.TrimSpace(denom)
	if denom == "" {
		return errorsmod.Wrap(common.ErrValidation, "collateral denom required")
	}
	if ratio.IsNil() || !ratio.IsPositive() || ratio.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(common.ErrValidation, "collateral ratio %s must be in (0,1]", ratio)
	}
	cfg, err := r.config()
	if err != nil {
		return err
	}
	entries, err := r.loadRatios()
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].Denom == denom {
			entries[i].Ratio = ratio.BigInt()
			found = true
			break
		}
	}
	if !found {
		if uint32(len(entries)) >= cfg.MaxCollateralRatios {
			return errorsmod.Wrapf(common.ErrCapacityExceeded, "collateral ratio table holds %d of %d entries",
				len(entries), cfg.MaxCollateralRatios)
		}
		entries = append(entries, ratioEntry{Denom: denom, Ratio: ratio.BigInt()})
	}
	if err := r.putRatios(entries); err != nil {
		return err
	}
	r.logger.Info("collateral ratio set", "denom", denom, "ratio", ratio.String())
	r.emit(NewRatioSetEvent(denom, ratio))
	return nil
}

// RemoveCollateralRatio delists denom. It fails with ErrLiveExposure while
// any account was last evaluated holding the denom.
func (r *Registry) RemoveCollateralRatio(denom string) error {
	if err := r.ready(); err != nil {
		return err
	}
	entries, err := r.loadRatios()
	if err != nil {
		return err
	}
	idx := -1
	for i := range entries {
		if entries[i].Denom == denom {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errorsmod.Wrapf(common.ErrNotFound, "collateral ratio %s", denom)
	}
	exposure, err := r.Exposure(denom)
	if err != nil {
		return err
	}
	if exposure > 0 {
		return errorsmod.Wrapf(common.ErrLiveExposure, "%d accounts hold %s", exposure, denom)
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := r.putRatios(entries); err != nil {
		return err
	}
	r.logger.Info("collateral ratio removed", "denom", denom)
	r.emit(NewRatioRemovedEvent(denom))
	return nil
}

// Exposure returns the number of accounts whose last evaluation held denom.
func (r *Registry) Exposure(denom string) (uint64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var count uint64
	if _, err := r.state.KVGet(exposureKey(denom), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// syncExposure moves the per-denom exposure counters from rec.Exposure to
// held and records held on rec.
func (r *Registry) syncExposure(rec *AccountRecord, held []string) error {
	before := make(map[string]bool, len(rec.Exposure))
	for _, denom := range rec.Exposure {
		before[denom] = true
	}
	after := make(map[string]bool, len(held))
	for _, denom := range held {
		after[denom] = true
		if !before[denom] {
			if err := r.bumpExposure(denom, 1); err != nil {
				return err
			}
		}
	}
	for _, denom := range rec.Exposure {
		if !after[denom] {
			if err := r.bumpExposure(denom, -1); err != nil {
				return err
			}
		}
	}
	rec.Exposure = append([]string(nil), held...)
	return nil
}

func (r *Registry) bumpExposure(denom string, delta int) error {
	var count uint64
	if _, err := r.state.KVGet(exposureKey(denom), &count); err != nil {
		return err
	}
	switch {
	case delta > 0:
		count++
	case count > 0:
		count--
	}
	if count == 0 {
		return r.state.KVDelete(exposureKey(denom))
	}
	return r.state.KVPut(exposureKey(denom), count)
}
