package core

import "github.com/shopspring/decimal"

// OpenLong is a long position still accumulating its close fills.
type OpenLong struct {
	Symbol string
	Time   Timestamp
	Fills  []Fill
}

// Close finalizes the position with the given close reason, time and fills.
func (o OpenLong) Close(reason CloseReason, time Timestamp, fills []Fill) Long {
	return Long{
		Symbol:     o.Symbol,
		Reason:     reason,
		OpenTime:   o.Time,
		OpenFills:  o.Fills,
		CloseTime:  time,
		CloseFills: fills,
	}
}

// Cost is the quote spent opening the position.
func (o OpenLong) Cost() decimal.Decimal { return TotalQuote(o.Fills) }

// BaseGain is the base asset received net of entry fees.
func (o OpenLong) BaseGain() decimal.Decimal {
	return TotalSize(o.Fills).Sub(TotalFee(o.Fills))
}

// Long is a closed long position.
//
// TODO: external token fees (e.g. BNB) are not netted separately from the
// fill's own asset.
type Long struct {
	Symbol     string
	Reason     CloseReason
	OpenTime   Timestamp
	OpenFills  []Fill
	CloseTime  Timestamp
	CloseFills []Fill
}

func (l Long) Cost() decimal.Decimal     { return TotalQuote(l.OpenFills) }
func (l Long) BaseGain() decimal.Decimal { return TotalSize(l.OpenFills).Sub(TotalFee(l.OpenFills)) }
func (l Long) BaseCost() decimal.Decimal { return TotalSize(l.CloseFills) }
func (l Long) Gain() decimal.Decimal     { return TotalQuote(l.CloseFills).Sub(TotalFee(l.CloseFills)) }
func (l Long) Profit() decimal.Decimal   { return l.Gain().Sub(l.Cost()) }
func (l Long) ROI() decimal.Decimal {
	if l.Cost().IsZero() {
		return decimal.Zero
	}
	return l.Profit().Div(l.Cost())
}
func (l Long) AnnualizedROI() decimal.Decimal { return AnnualizedROI(l.Duration(), l.ROI()) }
func (l Long) Dust() decimal.Decimal          { return l.BaseGain().Sub(l.BaseCost()) }
func (l Long) Duration() Interval             { return l.CloseTime - l.OpenTime }

// OpenShort is a short position still accumulating its close fills.
type OpenShort struct {
	Symbol     string
	Collateral decimal.Decimal // quote
	Borrowed   decimal.Decimal // base
	Time       Timestamp
	Fills      []Fill
}

// Close finalizes the position with the close reason, accrued interest,
// close time and fills.
func (o OpenShort) Close(reason CloseReason, interest decimal.Decimal, time Timestamp, fills []Fill) Short {
	return Short{
		Symbol:     o.Symbol,
		Reason:     reason,
		Collateral: o.Collateral,
		Borrowed:   o.Borrowed,
		OpenTime:   o.Time,
		OpenFills:  o.Fills,
		CloseTime:  time,
		CloseFills: fills,
		Interest:   interest,
	}
}

func (o OpenShort) Cost() decimal.Decimal     { return o.Collateral }
func (o OpenShort) BaseGain() decimal.Decimal { return o.Borrowed }

// Short is a closed short position.
type Short struct {
	Symbol     string
	Reason     CloseReason
	Collateral decimal.Decimal // quote
	Borrowed   decimal.Decimal // base
	OpenTime   Timestamp
	OpenFills  []Fill
	CloseTime  Timestamp
	CloseFills []Fill
	Interest   decimal.Decimal // base
}

func (s Short) Cost() decimal.Decimal     { return s.Collateral }
func (s Short) BaseGain() decimal.Decimal { return s.Borrowed }
func (s Short) BaseCost() decimal.Decimal { return s.Borrowed }
func (s Short) Gain() decimal.Decimal {
	return TotalQuote(s.OpenFills).Sub(TotalFee(s.OpenFills)).Add(s.Collateral).Sub(TotalQuote(s.CloseFills))
}
func (s Short) Profit() decimal.Decimal { return s.Gain().Sub(s.Cost()) }
func (s Short) ROI() decimal.Decimal {
	if s.Cost().IsZero() {
		return decimal.Zero
	}
	return s.Profit().Div(s.Cost())
}
func (s Short) AnnualizedROI() decimal.Decimal { return AnnualizedROI(s.Duration(), s.ROI()) }
func (s Short) Duration() Interval              { return s.CloseTime - s.OpenTime }

// ClosedPosition is satisfied by both Long and Short, letting TradingSummary
// treat them uniformly wherever only the shared accounting is needed.
type ClosedPosition interface {
	Cost() decimal.Decimal
	Gain() decimal.Decimal
	Profit() decimal.Decimal
	ROI() decimal.Decimal
	Duration() Interval
	OpenedAt() Timestamp
}

func (l Long) OpenedAt() Timestamp  { return l.OpenTime }
func (s Short) OpenedAt() Timestamp { return s.OpenTime }
