package valuation

import (
	"fmt"
	"math"

	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

// bank values a balance-sheet financial at an ROE-justified multiple of book.
func (e *Engine) bank(s domain.FinancialSnapshot) domain.ValuationResult {
	f := e.policy.Financials
	pb, ok := e.saneBookMultiple(s)
	if !ok {
		return insufficient(notePBUnreliable)
	}

	fairPB := f.BankFallbackPB
	if coe := e.costOfEquity(s.Beta); numeric.Positive(s.ReturnOnEquity) && coe > 0 {
		fairPB = numeric.Clamp(*s.ReturnOnEquity/coe, f.BankFairPBFloor, f.BankFairPBCap)
	}

	status := domain.StatusFairValue
	switch ratio := pb / fairPB; {
	case ratio < f.BankCheapRatio:
		status = domain.StatusUndervalued
	case ratio > f.BankRichRatio:
		status = domain.StatusOvervalued
	}
	return e.bookValueResult(s, pb, fairPB, status, fmt.Sprintf(noteBankFormat, fairPB))
}

// reit values a REIT at a fixed multiple of book since FFO is not part of
// the snapshot.
func (e *Engine) reit(s domain.FinancialSnapshot) domain.ValuationResult {
	f := e.policy.Financials
	pb, ok := e.saneBookMultiple(s)
	if !ok {
		return insufficient(notePBUnreliable)
	}

	status := domain.StatusFairValue
	switch {
	case pb < f.REITCheapPB:
		status = domain.StatusUndervalued
	case pb > f.REITRichPB:
		status = domain.StatusOvervalued
	}
	return e.bookValueResult(s, pb, f.REITFairPB, status, noteREIT)
}

func (e *Engine) saneBookMultiple(s domain.FinancialSnapshot) (float64, bool) {
	f := e.policy.Financials
	if s.PriceToBook == nil {
		return 0, false
	}
	pb := *s.PriceToBook
	if pb < f.PBSanityMin || pb > f.PBSanityMax {
		return 0, false
	}
	return pb, true
}

// bookValueResult prices the ticker at fairPB times book value per share.
// Status comes from the P/B comparison; the price cap still bounds the value.
func (e *Engine) bookValueResult(s domain.FinancialSnapshot, pb, fairPB float64, status domain.ValuationStatus, note string) domain.ValuationResult {
	var a assessment
	a.add(domain.ConfidenceMedium, reasonRoute, note)

	res := domain.ValuationResult{Status: status}
	if numeric.Positive(s.CurrentPrice) {
		price := *s.CurrentPrice
		iv := math.Max(price/pb*fairPB, e.policy.DCF.IVFloor)
		iv = e.capAtPrice(iv, price, &a)
		if iv > 0 {
			res.IntrinsicValue = domain.Float(numeric.Round(iv, 2))
			res.BuyPrice = domain.Float(numeric.Round(iv*(1-e.policy.DCF.MarginOfSafety), 2))
		}
		res.UpsidePct = domain.Float(numeric.Round((iv-price)/price, 4))
	}
	res.Confidence = a.level()
	res.Note = a.note()
	return res
}

// capAtPrice bounds iv to the configured multiple of price and records the
// downgrade when it bites.
func (e *Engine) capAtPrice(iv, price float64, a *assessment) float64 {
	mult := e.policy.DCF.IVCapMultiplier
	if price <= 0 || !numeric.Finite(iv) || iv <= price*mult {
		return iv
	}
	a.add(domain.ConfidenceLow, reasonPriceCap, fmt.Sprintf(notePriceCapFormat, mult))
	return price * mult
}
