package domain

import (
	"math"
	"sync"
)

// Frame is a bar series augmented with indicator columns of identical length.
// Rows without enough history hold NaN; use Defined before comparing values.
type Frame struct {
	Symbol string
	Bars   []Bar

	RSI           []float64
	MACD          []float64
	MACDSignal    []float64
	MACDHistogram []float64
	BBUpper       []float64
	BBMiddle      []float64
	BBLower       []float64
	SMA20         []float64
	SMA50         []float64
	EMA12         []float64
	EMA26         []float64
	VolumeSMA     []float64

	// Windows the RSI and MACD columns were built with. Zero when unknown.
	RSIPeriod      int
	MACDFastSpan   int
	MACDSlowSpan   int
	MACDSignalSpan int

	derived *derivedSeries // shared with every prefix view of the same series
}

type derivedSeries struct {
	mu     sync.Mutex
	root   *Frame
	series map[string][]float64
}

// Undefined is the sentinel stored for indicator values that are not yet available.
var Undefined = math.NaN()

// Defined reports whether v holds a usable indicator value.
func Defined(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bars)
}

// Last returns the index of the most recent row, or -1 for an empty frame.
func (f *Frame) Last() int {
	return f.Len() - 1
}

// Prefix returns a view of the first n rows. Columns are shared, not copied.
// Every indicator is causal, so a prefix view equals a frame computed on the first n bars.
func (f *Frame) Prefix(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	f.Prepare()
	return &Frame{
		Symbol:        f.Symbol,
		Bars:          f.Bars[:n],
		RSI:           f.RSI[:n],
		MACD:          f.MACD[:n],
		MACDSignal:    f.MACDSignal[:n],
		MACDHistogram: f.MACDHistogram[:n],
		BBUpper:       f.BBUpper[:n],
		BBMiddle:      f.BBMiddle[:n],
		BBLower:       f.BBLower[:n],
		SMA20:         f.SMA20[:n],
		SMA50:         f.SMA50[:n],
		EMA12:         f.EMA12[:n],
		EMA26:         f.EMA26[:n],
		VolumeSMA:     f.VolumeSMA[:n],

		RSIPeriod:      f.RSIPeriod,
		MACDFastSpan:   f.MACDFastSpan,
		MACDSlowSpan:   f.MACDSlowSpan,
		MACDSignalSpan: f.MACDSignalSpan,
		derived:        f.derived,
	}
}

// Prepare attaches the derived-series cache. Call it before sharing the frame across goroutines.
func (f *Frame) Prepare() {
	if f.derived == nil {
		f.derived = &derivedSeries{root: f, series: make(map[string][]float64)}
	}
}

// Derived returns a causal series computed once over the full underlying frame and cached under key,
// truncated to this view. compute must only use rows up to i when producing row i.
// Safe for concurrent use by strategies sharing a frame.
func (f *Frame) Derived(key string, compute func(full *Frame) []float64) []float64 {
	f.Prepare()
	d := f.derived
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.series[key]
	if !ok {
		s = compute(d.root)
		d.series[key] = s
	}
	return s[:f.Len()]
}

// Closes returns the close prices in row order.
func (f *Frame) Closes() []float64 {
	out := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes in row order.
func (f *Frame) Volumes() []float64 {
	out := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Volume
	}
	return out
}
