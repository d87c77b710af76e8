package engine

import (
	"math"
	"testing"
	"time"
)

// fakeHistory is an in-memory PriceHistory keyed by (item, realm).
type fakeHistory struct {
	recent  map[SeriesKey]float64
	series  map[SeriesKey][]PricePoint
	windows []time.Duration
}

func (f *fakeHistory) GetRecentPrice(itemID, realmID int32, window time.Duration) (float64, bool) {
	f.windows = append(f.windows, window)
	v, ok := f.recent[SeriesKey{ItemID: itemID, RealmID: realmID}]
	return v, ok
}

func (f *fakeHistory) GetPriceHistory(itemID, realmID int32, window time.Duration) []PricePoint {
	f.windows = append(f.windows, window)
	return f.series[SeriesKey{ItemID: itemID, RealmID: realmID}]
}

func points(prices ...float64) []PricePoint {
	out := make([]PricePoint, len(prices))
	for i, p := range prices {
		out[i] = PricePoint{Timestamp: int64(1000 + i*3600), AvgPrice: p}
	}
	return out
}

func TestMovingAverages_WarmUpIsAbsent(t *testing.T) {
	pts := points(1, 2, 3, 4, 5)
	got := MovingAverages(pts, 3, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i := 0; i < 2; i++ {
		if got[i].SMAShort != nil {
			t.Errorf("SMAShort[%d] = %v, want nil", i, *got[i].SMAShort)
		}
	}
	wantShort := []float64{2, 3, 4}
	for i, w := range wantShort {
		v := got[i+2].SMAShort
		if v == nil || !approx(*v, w) {
			t.Errorf("SMAShort[%d] = %v, want %v", i+2, v, w)
		}
	}
	for i := 0; i < 4; i++ {
		if got[i].SMALong != nil {
			t.Errorf("SMALong[%d] should be nil", i)
		}
	}
	if v := got[4].SMALong; v == nil || !approx(*v, 3) {
		t.Errorf("SMALong[4] = %v, want 3", v)
	}
	if got[3].Price != 4 || got[3].Timestamp != pts[3].Timestamp {
		t.Errorf("row 3 = %+v, not aligned to input", got[3])
	}
}

func TestMovingAverages_ShortHistory(t *testing.T) {
	got := MovingAverages(points(1, 2), 0, 0) // defaults 7/30
	for i, row := range got {
		if row.SMAShort != nil || row.SMALong != nil {
			t.Errorf("row %d should have no averages: %+v", i, row)
		}
	}
	if len(MovingAverages(nil, 7, 30)) != 0 {
		t.Error("MovingAverages(nil) should be empty")
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility(nil); v != 0 {
		t.Errorf("Volatility(nil) = %v, want 0", v)
	}
	if v := Volatility(points(10)); v != 0 {
		t.Errorf("Volatility(1 point) = %v, want 0", v)
	}
	if v := Volatility(points(10, 11)); v != 0 {
		t.Errorf("Volatility(2 points) = %v, want 0 (single return)", v)
	}
	if v := Volatility(points(5, 5, 5, 5)); v != 0 {
		t.Errorf("Volatility(flat) = %v, want 0", v)
	}

	// returns: +0.1, -0.1 ; mean 0 ; sample variance = (0.01+0.01)/1 = 0.02
	got := Volatility(points(10, 11, 9.9))
	want := math.Sqrt(0.02) * math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Volatility = %v, want %v", got, want)
	}
}

func TestRSI_RequiresPeriodPlusOne(t *testing.T) {
	res := RSI(points(1, 2, 3, 4, 5), 5) // exactly period points
	if res.Current != nil || len(res.Series) != 0 {
		t.Errorf("RSI with period points = %+v, want no indicator", res)
	}
}

func TestRSI_Values(t *testing.T) {
	// deltas: +1, -1, +2, -1 ; period 2
	pts := points(10, 11, 10, 12, 11)
	res := RSI(pts, 2)
	// window (+1,-1): g=0.5 l=0.5 -> 50
	// window (-1,+2): g=1 l=0.5 -> RS=2 -> 66.67
	// window (+2,-1): g=1 l=0.5 -> 66.67
	want := []float64{50, 100 - 100/3.0, 100 - 100/3.0}
	if len(res.Series) != len(want) {
		t.Fatalf("len(Series) = %d, want %d", len(res.Series), len(want))
	}
	for i, w := range want {
		if math.Abs(res.Series[i].RSI-w) > 1e-9 {
			t.Errorf("Series[%d] = %v, want %v", i, res.Series[i].RSI, w)
		}
		if res.Series[i].Timestamp != pts[i+2].Timestamp {
			t.Errorf("Series[%d].Timestamp = %d, want %d", i, res.Series[i].Timestamp, pts[i+2].Timestamp)
		}
	}
	if res.Current == nil || math.Abs(*res.Current-want[2]) > 1e-9 {
		t.Errorf("Current = %v, want %v", res.Current, want[2])
	}
}

func TestRSI_FirstValueAtPeriodMinusOne(t *testing.T) {
	pts := points(10, 9, 11, 10, 12, 11, 13, 12, 14, 13, 15, 14, 16, 15, 17)
	res := RSI(pts, 14)
	if len(res.Series) != 2 {
		t.Fatalf("len(Series) = %d, want 2", len(res.Series))
	}
	if res.Series[0].Timestamp != pts[13].Timestamp || res.Series[1].Timestamp != pts[14].Timestamp {
		t.Errorf("timestamps = %d, %d, want %d, %d",
			res.Series[0].Timestamp, res.Series[1].Timestamp, pts[13].Timestamp, pts[14].Timestamp)
	}
	// first window: 6 gains of 2 and 7 losses of 1 over 14 positions
	if want := 100 - 100/(1+12.0/7); math.Abs(res.Series[0].RSI-want) > 1e-9 {
		t.Errorf("Series[0] = %v, want %v", res.Series[0].RSI, want)
	}
	if want := 100 - 100/3.0; res.Current == nil || math.Abs(*res.Current-want) > 1e-9 {
		t.Errorf("Current = %v, want %v", res.Current, want)
	}
}

func TestRSI_HugePeriodIsAbsent(t *testing.T) {
	res := RSI(points(1, 2, 3), math.MaxInt)
	if res.Current != nil || len(res.Series) != 0 {
		t.Errorf("RSI with MaxInt period = %+v, want no indicator", res)
	}
}

func TestRSI_ZeroLossPointsExcluded(t *testing.T) {
	// Strictly rising: average loss is always zero.
	res := RSI(points(1, 2, 3, 4, 5, 6), 3)
	if len(res.Series) != 0 {
		t.Errorf("Series = %v, want empty", res.Series)
	}
	if res.Current != nil {
		t.Errorf("Current = %v, want nil", *res.Current)
	}

	// A drop early on, then a rise: the last windows have no losses.
	res = RSI(points(5, 4, 5, 6, 7), 2)
	if len(res.Series) != 2 {
		t.Fatalf("len(Series) = %d, want 2", len(res.Series))
	}
	if res.Current != nil {
		t.Errorf("Current = %v, want nil (latest point undefined)", *res.Current)
	}
	for _, p := range res.Series {
		if p.RSI < 0 || p.RSI > 100 {
			t.Errorf("RSI %v out of [0,100]", p.RSI)
		}
	}
}

func TestBacktest(t *testing.T) {
	if got := Backtest(points(10)); len(got) != 0 {
		t.Errorf("Backtest(1 point) = %v, want empty", got)
	}
	pts := points(10, 11, 9.9, 12.1)
	got := Backtest(pts)
	want := []float64{0.1, -0.01, 0.21}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if math.Abs(got[i].CumulativeReturn-w) > 1e-9 {
			t.Errorf("cum[%d] = %v, want %v", i, got[i].CumulativeReturn, w)
		}
		if got[i].Timestamp != pts[i+1].Timestamp {
			t.Errorf("cum[%d] timestamp = %d, want %d", i, got[i].Timestamp, pts[i+1].Timestamp)
		}
	}
}

func TestAlignSeries_InnerJoin(t *testing.T) {
	a := []PricePoint{{1, 10}, {2, 11}, {3, 12}, {5, 13}}
	b := []PricePoint{{2, 20}, {3, 21}, {4, 22}, {5, 23}}
	shared, aligned := AlignSeries(map[string][]PricePoint{"a": a, "b": b})
	wantTS := []int64{2, 3, 5}
	if len(shared) != len(wantTS) {
		t.Fatalf("shared = %v, want %v", shared, wantTS)
	}
	for i := range wantTS {
		if shared[i] != wantTS[i] {
			t.Errorf("shared[%d] = %d, want %d", i, shared[i], wantTS[i])
		}
	}
	if aligned["a"][2] != 13 || aligned["b"][0] != 20 {
		t.Errorf("aligned = %v", aligned)
	}
}

func TestCorrelationOf(t *testing.T) {
	up := points(1, 2, 3, 4)
	down := points(8, 6, 4, 2)
	flat := points(5, 5, 5, 5)
	m := CorrelationOf(map[string][]PricePoint{"up": up, "down": down, "flat": flat})

	if len(m.Labels) != 3 || m.Labels[0] != "down" || m.Labels[1] != "flat" || m.Labels[2] != "up" {
		t.Fatalf("Labels = %v", m.Labels)
	}
	if m.Points != 4 {
		t.Errorf("Points = %d, want 4", m.Points)
	}
	if v := m.Values[0][2]; v == nil || math.Abs(*v+1) > 1e-9 {
		t.Errorf("corr(down, up) = %v, want -1", v)
	}
	if v := m.Values[2][2]; v == nil || *v != 1 {
		t.Errorf("corr(up, up) = %v, want 1", v)
	}
	for j := range m.Labels {
		if m.Values[1][j] != nil || m.Values[j][1] != nil {
			t.Errorf("flat series correlation should be undefined at %d", j)
		}
	}
}

func TestCorrelationOf_NotEnoughOverlap(t *testing.T) {
	m := CorrelationOf(map[string][]PricePoint{
		"a": {{1, 1}, {2, 2}},
		"b": {{2, 5}, {3, 6}},
	})
	if m.Points != 1 {
		t.Errorf("Points = %d, want 1", m.Points)
	}
	for i := range m.Values {
		for j := range m.Values[i] {
			if m.Values[i][j] != nil {
				t.Errorf("Values[%d][%d] should be nil", i, j)
			}
		}
	}
}

func TestIndicators_UsesWindowAndHistory(t *testing.T) {
	k := SeriesKey{ItemID: 10620, RealmID: 4395}
	h := &fakeHistory{series: map[SeriesKey][]PricePoint{k: points(10, 11, 9.9, 12.1)}}
	ind := &Indicators{History: h}

	r := ind.Report(k.ItemID, k.RealmID, 2, 3, 14)
	if r.Points != 4 || len(r.Backtest) != 3 {
		t.Errorf("Report points/backtest = %d/%d, want 4/3", r.Points, len(r.Backtest))
	}
	if h.windows[0] != IndicatorWindow {
		t.Errorf("window = %v, want %v", h.windows[0], IndicatorWindow)
	}
	if r.Volatility <= 0 || r.Volatility != ind.Volatility(k.ItemID, k.RealmID) {
		t.Errorf("Volatility = %v, want > 0 and equal to the direct call", r.Volatility)
	}
	if r.RSI.Current != nil {
		t.Errorf("RSI with 4 points should be absent")
	}
	if r.MovingAverages[2].SMALong == nil {
		t.Errorf("SMALong[2] should be defined")
	}

	ind.Window = 48 * time.Hour
	ind.Report(k.ItemID, k.RealmID, 0, 0, 0)
	if got := h.windows[len(h.windows)-1]; got != 48*time.Hour {
		t.Errorf("window = %v, want 48h", got)
	}

	m := ind.Correlation(map[string]SeriesKey{"x": k, "y": k})
	if v := m.Values[0][1]; v == nil || math.Abs(*v-1) > 1e-9 {
		t.Errorf("corr(x, x) = %v, want 1", v)
	}
}
