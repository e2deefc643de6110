package domain

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// LagScore is the correlation between a response and its driver accumulated
// over the Lag days strictly preceding each date.
type LagScore struct {
	Lag         int      `json:"lag"`
	Coefficient float64  `json:"coefficient"`
	Samples     int      `json:"samples"`
	PValue      *float64 `json:"p_value,omitempty"`
}

// LagCorrelationResult holds the defined scores for lags 1..MaxLag in
// ascending order. Best is nil when no lag produced a defined coefficient.
type LagCorrelationResult struct {
	Driver   string     `json:"driver"`
	Response string     `json:"response"`
	MaxLag   int        `json:"max_lag"`
	Scores   []LagScore `json:"scores"`
	Best     *LagScore  `json:"best,omitempty"`
}

// Defined reports whether any lag produced a coefficient.
func (r LagCorrelationResult) Defined() bool { return r.Best != nil }

// Coefficients returns the lag → coefficient mapping.
func (r LagCorrelationResult) Coefficients() map[int]float64 {
	m := make(map[int]float64, len(r.Scores))
	for _, s := range r.Scores {
		m[s.Lag] = s.Coefficient
	}
	return m
}

// errUndefined marks a lag whose sample cannot yield a coefficient.
var errUndefined = errors.New("correlation undefined")

// AnalyzeLag correlates response against driver accumulated over each lag in
// [1, maxLag]. Dates whose lookback window is not fully covered by defined
// driver values on consecutive calendar days are excluded for that lag.
// Lags are evaluated concurrently.
//
// When no lag is defined the returned result has no Best and the error wraps
// ErrInsufficientData.
func AnalyzeLag(ds AlignedDataset, driver, response string, maxLag int) (LagCorrelationResult, error) {
	if maxLag < 1 {
		return LagCorrelationResult{}, fmt.Errorf("%w: max lag %d must be at least 1", ErrInvalidArgument, maxLag)
	}
	x, err := ds.Column(driver)
	if err != nil {
		return LagCorrelationResult{}, err
	}
	y, err := ds.Column(response)
	if err != nil {
		return LagCorrelationResult{}, err
	}

	lookback := lookbackRuns(ds, x)
	slots := make([]*LagScore, maxLag)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := 1; k <= maxLag; k++ {
		g.Go(func() error {
			acc, resp := pairsForLag(x, y, lookback, k)
			score, err := correlate(acc, resp)
			if errors.Is(err, errUndefined) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("lag %d: %w", k, err)
			}
			score.Lag = k
			slots[k-1] = &score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LagCorrelationResult{}, err
	}

	res := LagCorrelationResult{Driver: driver, Response: response, MaxLag: maxLag}
	for _, s := range slots {
		if s == nil {
			continue
		}
		res.Scores = append(res.Scores, *s)
	}
	res.Best = bestScore(res.Scores)
	if res.Best == nil {
		return res, fmt.Errorf("%w: no lag in 1..%d has a defined correlation between %q and %q",
			ErrInsufficientData, maxLag, driver, response)
	}
	return res, nil
}

// bestScore picks the maximum coefficient; scores are in ascending lag order,
// so the smaller lag wins a tie.
func bestScore(scores []LagScore) *LagScore {
	var best *LagScore
	for i := range scores {
		if best == nil || scores[i].Coefficient > best.Coefficient {
			best = &scores[i]
		}
	}
	return best
}

// AccumulatedPoint pairs a response with its driver accumulated over a lag.
type AccumulatedPoint struct {
	Date     time.Time `json:"date"`
	Driver   float64   `json:"driver"`
	Response float64   `json:"response"`
}

// AccumulatedDriver returns the paired points used to score one lag, for
// scatter presentation of the chosen lag.
func AccumulatedDriver(ds AlignedDataset, driver, response string, lag int) ([]AccumulatedPoint, error) {
	if lag < 1 {
		return nil, fmt.Errorf("%w: lag %d must be at least 1", ErrInvalidArgument, lag)
	}
	x, err := ds.Column(driver)
	if err != nil {
		return nil, err
	}
	y, err := ds.Column(response)
	if err != nil {
		return nil, err
	}
	lookback := lookbackRuns(ds, x)

	var out []AccumulatedPoint
	for i := range ds.Rows {
		acc, ok := accumulate(x, y, lookback, i, lag)
		if !ok {
			continue
		}
		out = append(out, AccumulatedPoint{Date: ds.Rows[i].Date, Driver: acc, Response: y[i].Value})
	}
	return out, nil
}

// lookbackRuns returns, for each row, how many consecutive calendar days with
// a defined driver value end on the day before that row.
func lookbackRuns(ds AlignedDataset, x []Cell) []int {
	n := len(ds.Rows)
	runs := make([]int, n) // run length ending at row j inclusive
	prev := make([]int, n)
	for j := range n {
		follows := j > 0 && ds.Rows[j].Date.Sub(ds.Rows[j-1].Date) == 24*time.Hour
		if follows {
			prev[j] = runs[j-1]
		}
		if x[j].Absent {
			continue
		}
		runs[j] = 1
		if follows {
			runs[j] += runs[j-1]
		}
	}
	return prev
}

func accumulate(x, y []Cell, lookback []int, i, lag int) (float64, bool) {
	if lookback[i] < lag || y[i].Absent {
		return 0, false
	}
	window := make([]float64, lag)
	for j := range lag {
		window[j] = x[i-lag+j].Value
	}
	sum, err := stats.Sum(window)
	if err != nil {
		return 0, false
	}
	return sum, true
}

func pairsForLag(x, y []Cell, lookback []int, lag int) (acc, resp []float64) {
	for i := range y {
		v, ok := accumulate(x, y, lookback, i, lag)
		if !ok {
			continue
		}
		acc = append(acc, v)
		resp = append(resp, y[i].Value)
	}
	return acc, resp
}

// correlate computes Pearson's r with a two-sided p-value from Student's t
// distribution on n-2 degrees of freedom.
func correlate(x, y []float64) (LagScore, error) {
	n := len(x)
	if n < 2 || constant(x) || constant(y) {
		return LagScore{}, errUndefined
	}
	r, err := stats.Pearson(x, y)
	if err != nil {
		return LagScore{}, err
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return LagScore{}, errUndefined
	}
	r = math.Max(-1, math.Min(1, r))

	score := LagScore{Coefficient: r, Samples: n}
	if df := float64(n - 2); df > 0 {
		p := 0.0
		if math.Abs(r) < 1 {
			t := math.Abs(r) * math.Sqrt(df/(1-r*r))
			p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
		}
		score.PValue = &p
	}
	return score, nil
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}
