package engine

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/montanaflynn/stats"
)

// Indicator defaults.
const (
	DefaultShortMA   = 7
	DefaultLongMA    = 30
	DefaultRSIPeriod = 14
	TradingPeriods   = 252 // sampling periods per year used to annualize volatility
)

// MAPoint is one row of the moving-average table. SMAShort / SMALong are nil
// until enough points exist for the window.
type MAPoint struct {
	Timestamp int64    `json:"timestamp"`
	Price     float64  `json:"price"`
	SMAShort  *float64 `json:"sma_short"`
	SMALong   *float64 `json:"sma_long"`
}

// RSIPoint is a defined RSI value at a history timestamp.
type RSIPoint struct {
	Timestamp int64   `json:"timestamp"`
	RSI       float64 `json:"rsi"`
}

// RSIResult holds the latest RSI and the defined series. Current is nil when
// there is not enough history or the latest value is undefined.
type RSIResult struct {
	Current *float64   `json:"current"`
	Series  []RSIPoint `json:"series"`
}

// BacktestPoint is the buy-and-hold cumulative return up to Timestamp.
type BacktestPoint struct {
	Timestamp        int64   `json:"timestamp"`
	CumulativeReturn float64 `json:"cumulative_return"`
}

// SeriesKey identifies one stored price series.
type SeriesKey struct {
	ItemID  int32 `json:"item_id"`
	RealmID int32 `json:"realm_id"`
}

// CorrelationMatrix is a symmetric Pearson matrix over timestamp-aligned
// series. Values[i][j] is nil when the correlation is undefined.
type CorrelationMatrix struct {
	Labels []string     `json:"labels"`
	Values [][]*float64 `json:"values"`
	Points int          `json:"points"` // aligned timestamps used
}

// rollingSMA returns the trailing simple moving average aligned to prices,
// with nil for positions that do not have a full window behind them.
func rollingSMA(prices []float64, window int) []*float64 {
	out := make([]*float64, len(prices))
	if window <= 0 || len(prices) < window {
		return out
	}
	sma := talib.Sma(prices, window)
	for i := window - 1; i < len(prices); i++ {
		v := sma[i]
		out[i] = &v
	}
	return out
}

func pricesOf(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.AvgPrice
	}
	return out
}

// MovingAverages computes short and long trailing SMAs over the history.
func MovingAverages(points []PricePoint, short, long int) []MAPoint {
	if short <= 0 {
		short = DefaultShortMA
	}
	if long <= 0 {
		long = DefaultLongMA
	}
	prices := pricesOf(points)
	s := rollingSMA(prices, short)
	l := rollingSMA(prices, long)

	out := make([]MAPoint, len(points))
	for i, p := range points {
		out[i] = MAPoint{Timestamp: p.Timestamp, Price: p.AvgPrice, SMAShort: s[i], SMALong: l[i]}
	}
	return out
}

// pctReturns returns period-over-period fractional changes. A step from a
// zero price counts as no change.
func pctReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// Volatility is the annualized sample standard deviation of returns.
// Returns 0 when fewer than two returns are available.
func Volatility(points []PricePoint) float64 {
	returns := pctReturns(pricesOf(points))
	if len(returns) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(TradingPeriods)
}

// RSI computes the Relative Strength Index with simple rolling means of gains
// and losses over period positions. The first position carries no change, so
// the first value lands on points[period-1]. It needs at least period+1
// points. Points whose average loss is zero have no defined RSI and are left
// out.
func RSI(points []PricePoint, period int) RSIResult {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(points)-1 < period {
		return RSIResult{Series: []RSIPoint{}}
	}

	n := len(points)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := points[i].AvgPrice - points[i-1].AvgPrice
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	series := make([]RSIPoint, 0, n-period+1)
	var current *float64
	var gainSum, lossSum float64
	for j := 0; j < n; j++ {
		gainSum += gains[j]
		lossSum += losses[j]
		if j >= period {
			gainSum -= gains[j-period]
			lossSum -= losses[j-period]
		}
		if j < period-1 {
			continue
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)
		current = nil
		if avgLoss <= 1e-12 {
			continue
		}
		rs := avgGain / avgLoss
		v := 100 - 100/(1+rs)
		series = append(series, RSIPoint{Timestamp: points[j].Timestamp, RSI: v})
		current = &v
	}
	return RSIResult{Current: current, Series: series}
}

// Backtest returns the cumulative buy-and-hold return after each period.
// Fewer than two points yields an empty series.
func Backtest(points []PricePoint) []BacktestPoint {
	returns := pctReturns(pricesOf(points))
	if len(returns) == 0 {
		return []BacktestPoint{}
	}
	out := make([]BacktestPoint, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		out[i] = BacktestPoint{Timestamp: points[i+1].Timestamp, CumulativeReturn: growth - 1}
	}
	return out
}

// AlignSeries inner-joins labelled histories on timestamp. The result holds
// the shared timestamps in ascending order and, per label, the prices at
// those timestamps.
func AlignSeries(series map[string][]PricePoint) ([]int64, map[string][]float64) {
	aligned := make(map[string][]float64, len(series))
	if len(series) == 0 {
		return nil, aligned
	}

	counts := make(map[int64]int)
	byLabel := make(map[string]map[int64]float64, len(series))
	for label, pts := range series {
		m := make(map[int64]float64, len(pts))
		for _, p := range pts {
			m[p.Timestamp] = p.AvgPrice
		}
		byLabel[label] = m
		for ts := range m {
			counts[ts]++
		}
	}

	var shared []int64
	for ts, c := range counts {
		if c == len(series) {
			shared = append(shared, ts)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	for label, m := range byLabel {
		vals := make([]float64, len(shared))
		for i, ts := range shared {
			vals[i] = m[ts]
		}
		aligned[label] = vals
	}
	return shared, aligned
}

// CorrelationOf builds the Pearson matrix over already-fetched series.
// Labels are sorted for a stable layout.
func CorrelationOf(series map[string][]PricePoint) CorrelationMatrix {
	labels := make([]string, 0, len(series))
	for label := range series {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	shared, aligned := AlignSeries(series)
	m := CorrelationMatrix{Labels: labels, Values: make([][]*float64, len(labels)), Points: len(shared)}
	for i := range labels {
		m.Values[i] = make([]*float64, len(labels))
	}
	if len(shared) < 2 {
		return m
	}

	flat := make([]bool, len(labels))
	for i, label := range labels {
		sd, err := stats.StandardDeviationPopulation(aligned[label])
		flat[i] = err != nil || sd == 0
	}
	for i := range labels {
		for j := i; j < len(labels); j++ {
			if flat[i] || flat[j] {
				continue
			}
			var v float64
			if i == j {
				v = 1
			} else {
				r, err := stats.Pearson(aligned[labels[i]], aligned[labels[j]])
				if err != nil || math.IsNaN(r) {
					continue
				}
				v = r
			}
			a, b := v, v
			m.Values[i][j] = &a
			m.Values[j][i] = &b
		}
	}
	return m
}

// Indicators computes indicators from stored history.
type Indicators struct {
	History PriceHistory
	Window  time.Duration // lookback; 0 = IndicatorWindow
}

func (ind *Indicators) series(itemID, realmID int32) []PricePoint {
	w := ind.Window
	if w <= 0 {
		w = IndicatorWindow
	}
	return ind.History.GetPriceHistory(itemID, realmID, w)
}

// Report is every single-series indicator over one stored history.
type Report struct {
	Points         int             `json:"points"`
	MovingAverages []MAPoint       `json:"moving_averages"`
	Volatility     float64         `json:"volatility"`
	RSI            RSIResult       `json:"rsi"`
	Backtest       []BacktestPoint `json:"backtest"`
}

// Report fetches the series once and computes all indicators over it.
// Zero short, long or period use the defaults.
func (ind *Indicators) Report(itemID, realmID int32, short, long, period int) Report {
	pts := ind.series(itemID, realmID)
	return Report{
		Points:         len(pts),
		MovingAverages: MovingAverages(pts, short, long),
		Volatility:     Volatility(pts),
		RSI:            RSI(pts, period),
		Backtest:       Backtest(pts),
	}
}

func (ind *Indicators) Volatility(itemID, realmID int32) float64 {
	return Volatility(ind.series(itemID, realmID))
}

// Correlation fetches every labelled series and correlates them.
func (ind *Indicators) Correlation(keys map[string]SeriesKey) CorrelationMatrix {
	series := make(map[string][]PricePoint, len(keys))
	for label, k := range keys {
		series[label] = ind.series(k.ItemID, k.RealmID)
	}
	return CorrelationOf(series)
}
