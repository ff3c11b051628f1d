package trader

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/stoploss"
	"jax-research-platform/internal/strategy"
	"jax-research-platform/internal/takeprofit"
)

// OpenPosition holds at most one side's open position; a zero value means
// flat.
type OpenPosition struct {
	Long  *core.OpenLong
	Short *core.OpenShort
}

// IsOpen reports whether either side holds a position.
func (p OpenPosition) IsOpen() bool { return p.Long != nil || p.Short != nil }

// Symbol returns the open position's symbol, or "" if flat.
func (p OpenPosition) Symbol() string {
	switch {
	case p.Long != nil:
		return p.Long.Symbol
	case p.Short != nil:
		return p.Short.Symbol
	default:
		return ""
	}
}

// BasicState is the Basic Trader's full mutable run state: everything
// needed to drive the main loop and, on graceful shutdown, to resume a run
// against the same BasicConfig.
type BasicState struct {
	Config BasicConfig

	Strategy   strategy.Strategy
	Changed    *strategy.Changed
	StopLoss   *stoploss.StopLoss
	TakeProfit *takeprofit.TakeProfit

	Quote   decimal.Decimal
	Summary *core.TradingSummary

	Next             core.Timestamp
	RealStart        core.Timestamp
	OpenNewPositions bool
	OpenPosition     OpenPosition
	FirstCandle      *core.Candle
	LastCandle       *core.Candle
	CloseOnExit      bool
}

// configDTO is BasicConfig's wire format: StrategyConfig.Factory is a Go
// func value and cannot round-trip through JSON, so only the strategy's
// registered name and sampled params are persisted; Resume resolves the
// factory back from a strategy.Registry.
type configDTO struct {
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Interval core.Interval   `json:"interval"`
	Start    core.Timestamp  `json:"start"`
	End      core.Timestamp  `json:"end"`
	Quote    decimal.Decimal `json:"quote"`

	StrategyName   string         `json:"strategy_name"`
	StrategyParams map[string]any `json:"strategy_params"`

	StopLossFraction   decimal.Decimal `json:"stop_loss_fraction"`
	TrailStopLoss      bool            `json:"trail_stop_loss"`
	TakeProfitFraction decimal.Decimal `json:"take_profit_fraction"`

	MissedCandlePolicy core.MissedCandlePolicy `json:"missed_candle_policy"`
	AdjustStart        bool                    `json:"adjust_start"`
	Long               bool                    `json:"long"`
	Short              bool                    `json:"short"`
	CloseOnExit        bool                    `json:"close_on_exit"`
	Mode               core.TradingMode        `json:"mode"`
}

func toConfigDTO(c BasicConfig) configDTO {
	return configDTO{
		Exchange: c.Exchange, Symbol: c.Symbol, Interval: c.Interval,
		Start: c.Start, End: c.End, Quote: c.Quote,
		StrategyName: c.Strategy.Name, StrategyParams: c.Strategy.Params,
		StopLossFraction: c.StopLossFraction, TrailStopLoss: c.TrailStopLoss,
		TakeProfitFraction: c.TakeProfitFraction,
		MissedCandlePolicy: c.MissedCandlePolicy, AdjustStart: c.AdjustStart,
		Long: c.Long, Short: c.Short, CloseOnExit: c.CloseOnExit, Mode: c.Mode,
	}
}

func fromConfigDTO(dto configDTO, registry *strategy.Registry) (BasicConfig, error) {
	registered, err := registry.Get(dto.StrategyName)
	if err != nil {
		return BasicConfig{}, fmt.Errorf("trader: resume: %w", err)
	}
	return BasicConfig{
		Exchange: dto.Exchange, Symbol: dto.Symbol, Interval: dto.Interval,
		Start: dto.Start, End: dto.End, Quote: dto.Quote,
		Strategy: StrategyConfig{
			Name: dto.StrategyName, Factory: registered.Factory, Params: dto.StrategyParams,
		},
		StopLossFraction: dto.StopLossFraction, TrailStopLoss: dto.TrailStopLoss,
		TakeProfitFraction: dto.TakeProfitFraction,
		MissedCandlePolicy: dto.MissedCandlePolicy, AdjustStart: dto.AdjustStart,
		Long: dto.Long, Short: dto.Short, CloseOnExit: dto.CloseOnExit, Mode: dto.Mode,
	}, nil
}

// stateDTO is BasicState's wire format. The strategy is reconstructed
// fresh from its registered name and params on Resume rather than captured
// byte-for-byte: the Strategy interface is implemented by arbitrary
// optimizer-sampled types, and requiring every implementation to support
// snapshot/restore would burden the strategy contract beyond what it
// otherwise needs. A resumed run must replay at least
// Strategy.Maturity()-1 closed candles ending at Next through Basic.Observe
// before resuming Run — the same warm-up mechanism AdjustStart already uses
// on a fresh strategy at the start of a run.
type stateDTO struct {
	Config configDTO `json:"config"`

	Quote          decimal.Decimal `json:"quote"`
	SummaryQuote   decimal.Decimal `json:"summary_quote"`
	SummaryStart   core.Timestamp  `json:"summary_start"`
	SummaryEnd     *core.Timestamp `json:"summary_end,omitempty"`
	LongPositions  []core.Long     `json:"long_positions,omitempty"`
	ShortPositions []core.Short    `json:"short_positions,omitempty"`

	Next             core.Timestamp  `json:"next"`
	RealStart        core.Timestamp  `json:"real_start"`
	OpenNewPositions bool            `json:"open_new_positions"`
	OpenLong         *core.OpenLong  `json:"open_long,omitempty"`
	OpenShort        *core.OpenShort `json:"open_short,omitempty"`
	FirstCandle      *core.Candle    `json:"first_candle,omitempty"`
	LastCandle       *core.Candle    `json:"last_candle,omitempty"`
	CloseOnExit      bool            `json:"close_on_exit"`

	StopLoss   stoploss.Snapshot   `json:"stop_loss"`
	TakeProfit takeprofit.Snapshot `json:"take_profit"`
}

// Persist captures everything in state that has a concrete serializable
// representation, for writing to a checkpoint store between ticks.
func Persist(state *BasicState) ([]byte, error) {
	var summaryEnd *core.Timestamp
	if end, ok := state.Summary.End(); ok {
		summaryEnd = &end
	}
	dto := stateDTO{
		Config:           toConfigDTO(state.Config),
		Quote:            state.Quote,
		SummaryQuote:     state.Summary.Quote,
		SummaryStart:     state.Summary.Start,
		SummaryEnd:       summaryEnd,
		LongPositions:    state.Summary.GetLongPositions(),
		ShortPositions:   state.Summary.GetShortPositions(),
		Next:             state.Next,
		RealStart:        state.RealStart,
		OpenNewPositions: state.OpenNewPositions,
		OpenLong:         state.OpenPosition.Long,
		OpenShort:        state.OpenPosition.Short,
		FirstCandle:      state.FirstCandle,
		LastCandle:       state.LastCandle,
		CloseOnExit:      state.CloseOnExit,
		StopLoss:         state.StopLoss.Snapshot(),
		TakeProfit:       state.TakeProfit.Snapshot(),
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("trader: persist: %w", err)
	}
	return data, nil
}

// Resume reconstructs a BasicState from a previously Persisted snapshot,
// resolving the strategy by name through registry. The caller must warm
// the returned state's Strategy up (see stateDTO's doc comment) before
// passing it to Basic.Run.
func Resume(data []byte, registry *strategy.Registry) (*BasicState, error) {
	var dto stateDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("trader: resume: %w", err)
	}

	config, err := fromConfigDTO(dto.Config, registry)
	if err != nil {
		return nil, err
	}
	strat, err := config.Strategy.construct()
	if err != nil {
		return nil, fmt.Errorf("trader: resume: reconstruct strategy: %w", err)
	}

	summary := core.NewTradingSummary(dto.SummaryStart, dto.SummaryQuote, config.QuoteAsset())
	for _, p := range dto.LongPositions {
		summary.AppendLongPosition(p)
	}
	for _, p := range dto.ShortPositions {
		summary.AppendShortPosition(p)
	}
	if dto.SummaryEnd != nil {
		summary.Finish(*dto.SummaryEnd)
	}

	return &BasicState{
		Config:           config,
		Strategy:         strat,
		Changed:          strategy.NewChanged(true),
		StopLoss:         stoploss.Restore(dto.StopLoss),
		TakeProfit:       takeprofit.Restore(dto.TakeProfit),
		Quote:            dto.Quote,
		Summary:          summary,
		Next:             dto.Next,
		RealStart:        dto.RealStart,
		OpenNewPositions: dto.OpenNewPositions,
		OpenPosition:     OpenPosition{Long: dto.OpenLong, Short: dto.OpenShort},
		FirstCandle:      dto.FirstCandle,
		LastCandle:       dto.LastCandle,
		CloseOnExit:      dto.CloseOnExit,
	}, nil
}
