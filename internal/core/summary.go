package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TradingSummary accumulates closed positions for one trader run and
// derives aggregate and per-side statistics from them.
//
// Invariant: positions' open/close times fall within [Start, End]; End is
// monotone non-decreasing across Finish calls.
type TradingSummary struct {
	Start      Timestamp
	Quote      decimal.Decimal
	QuoteAsset string
	end        *Timestamp

	longPositions  []Long
	shortPositions []Short

	drawdownsDirty bool
	drawdowns      []decimal.Decimal
	maxDrawdown    decimal.Decimal
	meanDrawdown   decimal.Decimal
}

// NewTradingSummary creates a summary starting at start with initial capital
// quote in quoteAsset.
func NewTradingSummary(start Timestamp, quote decimal.Decimal, quoteAsset string) *TradingSummary {
	return &TradingSummary{
		Start:          start,
		Quote:          quote,
		QuoteAsset:     quoteAsset,
		drawdownsDirty: true,
	}
}

// AppendLongPosition records a closed long position.
func (s *TradingSummary) AppendLongPosition(p Long) {
	s.longPositions = append(s.longPositions, p)
	s.drawdownsDirty = true
}

// AppendShortPosition records a closed short position.
func (s *TradingSummary) AppendShortPosition(p Short) {
	s.shortPositions = append(s.shortPositions, p)
	s.drawdownsDirty = true
}

// GetPositions returns every closed position ordered by open time.
func (s *TradingSummary) GetPositions() []ClosedPosition {
	all := make([]ClosedPosition, 0, len(s.longPositions)+len(s.shortPositions))
	for _, p := range s.longPositions {
		all = append(all, p)
	}
	for _, p := range s.shortPositions {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt() < all[j].OpenedAt() })
	return all
}

// GetLongPositions returns closed long positions in append order.
func (s *TradingSummary) GetLongPositions() []Long { return s.longPositions }

// GetShortPositions returns closed short positions in append order.
func (s *TradingSummary) GetShortPositions() []Short { return s.shortPositions }

// Finish records the run's end time. End only ever moves forward.
func (s *TradingSummary) Finish(end Timestamp) {
	if s.end == nil {
		s.end = &end
		return
	}
	if end > *s.end {
		s.end = &end
	}
}

// End returns the most recent Finish value, or false if Finish was never
// called.
func (s *TradingSummary) End() (Timestamp, bool) {
	if s.end == nil {
		return 0, false
	}
	return *s.end, true
}

func (s *TradingSummary) Cost() decimal.Decimal { return s.Quote }
func (s *TradingSummary) Gain() decimal.Decimal { return s.Quote.Add(s.Profit()) }

func (s *TradingSummary) Profit() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.GetPositions() {
		total = total.Add(p.Profit())
	}
	return total
}

func (s *TradingSummary) ROI() decimal.Decimal {
	if s.Cost().IsZero() {
		return decimal.Zero
	}
	return s.Profit().Div(s.Cost())
}

func (s *TradingSummary) AnnualizedROI() decimal.Decimal {
	return AnnualizedROI(s.Duration(), s.ROI())
}

func (s *TradingSummary) Duration() Interval {
	end, ok := s.End()
	if !ok {
		return 0
	}
	return end - s.Start
}

func (s *TradingSummary) NumPositions() int {
	return len(s.longPositions) + len(s.shortPositions)
}
func (s *TradingSummary) NumLongPositions() int  { return len(s.longPositions) }
func (s *TradingSummary) NumShortPositions() int { return len(s.shortPositions) }

func numPositionsInProfit(positions []ClosedPosition) int {
	n := 0
	for _, p := range positions {
		if p.Profit().GreaterThanOrEqual(decimal.Zero) {
			n++
		}
	}
	return n
}

func numPositionsInLoss(positions []ClosedPosition) int {
	n := 0
	for _, p := range positions {
		if p.Profit().LessThan(decimal.Zero) {
			n++
		}
	}
	return n
}

func (s *TradingSummary) NumPositionsInProfit() int {
	return numPositionsInProfit(s.GetPositions())
}
func (s *TradingSummary) NumLongPositionsInProfit() int {
	return numPositionsInProfit(longToClosedSlice(s.longPositions))
}
func (s *TradingSummary) NumShortPositionsInProfit() int {
	return numPositionsInProfit(shortToClosedSlice(s.shortPositions))
}

func (s *TradingSummary) NumPositionsInLoss() int {
	return numPositionsInLoss(s.GetPositions())
}
func (s *TradingSummary) NumLongPositionsInLoss() int {
	return numPositionsInLoss(longToClosedSlice(s.longPositions))
}
func (s *TradingSummary) NumShortPositionsInLoss() int {
	return numPositionsInLoss(shortToClosedSlice(s.shortPositions))
}

func meanPositionProfit(positions []ClosedPosition) decimal.Decimal {
	if len(positions) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Profit())
	}
	return total.Div(decimal.NewFromInt(int64(len(positions))))
}

func (s *TradingSummary) MeanPositionProfit() decimal.Decimal {
	return meanPositionProfit(s.GetPositions())
}
func (s *TradingSummary) MeanLongPositionProfit() decimal.Decimal {
	return meanPositionProfit(longToClosedSlice(s.longPositions))
}
func (s *TradingSummary) MeanShortPositionProfit() decimal.Decimal {
	return meanPositionProfit(shortToClosedSlice(s.shortPositions))
}

func meanPositionDuration(positions []ClosedPosition) Interval {
	if len(positions) == 0 {
		return 0
	}
	var total Interval
	for _, p := range positions {
		total += p.Duration()
	}
	return total / Interval(len(positions))
}

func (s *TradingSummary) MeanPositionDuration() Interval {
	return meanPositionDuration(s.GetPositions())
}
func (s *TradingSummary) MeanLongPositionDuration() Interval {
	return meanPositionDuration(longToClosedSlice(s.longPositions))
}
func (s *TradingSummary) MeanShortPositionDuration() Interval {
	return meanPositionDuration(shortToClosedSlice(s.shortPositions))
}

// MaxDrawdown returns the largest peak-to-trough equity decline seen across
// the recorded positions, recomputing lazily if positions changed since the
// last call.
func (s *TradingSummary) MaxDrawdown() decimal.Decimal {
	s.calcDrawdownsIfStale()
	return s.maxDrawdown
}

// MeanDrawdown returns the average drawdown across the recorded positions.
func (s *TradingSummary) MeanDrawdown() decimal.Decimal {
	s.calcDrawdownsIfStale()
	return s.meanDrawdown
}

func (s *TradingSummary) calcDrawdownsIfStale() {
	if !s.drawdownsDirty {
		return
	}

	quote := s.Quote
	maxQuote := quote
	maxDrawdown := decimal.Zero
	sumDrawdown := decimal.Zero
	drawdowns := []decimal.Decimal{decimal.Zero}

	for _, p := range s.GetPositions() {
		quote = quote.Add(p.Profit())
		if quote.GreaterThan(maxQuote) {
			maxQuote = quote
		}
		var drawdown decimal.Decimal
		if maxQuote.IsZero() {
			drawdown = decimal.Zero
		} else {
			drawdown = decimal.NewFromInt(1).Sub(quote.Div(maxQuote))
		}
		drawdowns = append(drawdowns, drawdown)
		sumDrawdown = sumDrawdown.Add(drawdown)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}

	s.drawdowns = drawdowns
	s.maxDrawdown = maxDrawdown
	s.meanDrawdown = sumDrawdown.Div(decimal.NewFromInt(int64(len(drawdowns))))
	s.drawdownsDirty = false
}

// CalculateHodlProfit returns the profit of simply buying at firstCandle's
// close and selling at lastCandle's close with the same initial quote,
// fees and filters.
func (s *TradingSummary) CalculateHodlProfit(firstCandle, lastCandle Candle, fees Fees, filters Filters) decimal.Decimal {
	baseHodl := filters.Size.RoundDown(s.Quote.Div(firstCandle.Close))
	baseHodl = baseHodl.Sub(RoundHalfUp(baseHodl.Mul(fees.Taker), int32(filters.BasePrecision)))
	quoteHodl := filters.Size.RoundDown(baseHodl).Mul(lastCandle.Close)
	quoteHodl = quoteHodl.Sub(RoundHalfUp(quoteHodl.Mul(fees.Taker), int32(filters.QuotePrecision)))
	return quoteHodl.Sub(s.Quote)
}

func longToClosedSlice(ls []Long) []ClosedPosition {
	out := make([]ClosedPosition, len(ls))
	for i, l := range ls {
		out[i] = l
	}
	return out
}

func shortToClosedSlice(ss []Short) []ClosedPosition {
	out := make([]ClosedPosition, len(ss))
	for i, sh := range ss {
		out[i] = sh
	}
	return out
}
