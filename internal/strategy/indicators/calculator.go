package indicators

import "fortuneBot/internal/domain"

// Config holds the window lengths used to build a frame.
type Config struct {
	RSIPeriod       int
	BollingerPeriod int
	BollingerStdDev float64
	SMAFastPeriod   int
	SMASlowPeriod   int
	EMAFastSpan     int
	EMASlowSpan     int
	MACDSignalSpan  int
	VolumePeriod    int
}

// DefaultConfig returns the standard windows: RSI 14, Bollinger 20x2, SMA 20/50, EMA 12/26, signal 9, volume 20.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		SMAFastPeriod:   20,
		SMASlowPeriod:   50,
		EMAFastSpan:     12,
		EMASlowSpan:     26,
		MACDSignalSpan:  9,
		VolumePeriod:    20,
	}
}

// Calculate builds an indicator frame of the same length and order as bars.
// Missing config fields fall back to the defaults.
func Calculate(bars []domain.Bar, cfg Config) *domain.Frame {
	cfg = cfg.withDefaults()

	frame := &domain.Frame{
		Bars:           bars,
		RSIPeriod:      cfg.RSIPeriod,
		MACDFastSpan:   cfg.EMAFastSpan,
		MACDSlowSpan:   cfg.EMASlowSpan,
		MACDSignalSpan: cfg.MACDSignalSpan,
	}
	if len(bars) > 0 {
		frame.Symbol = bars[0].Symbol
	}

	closes := frame.Closes()
	frame.RSI = RSI(closes, cfg.RSIPeriod)
	frame.MACD, frame.MACDSignal, frame.MACDHistogram = MACD(closes, cfg.EMAFastSpan, cfg.EMASlowSpan, cfg.MACDSignalSpan)
	frame.BBUpper, frame.BBMiddle, frame.BBLower = Bollinger(closes, cfg.BollingerPeriod, cfg.BollingerStdDev)
	frame.SMA20 = SMA(closes, cfg.SMAFastPeriod)
	frame.SMA50 = SMA(closes, cfg.SMASlowPeriod)
	frame.EMA12 = EMA(closes, cfg.EMAFastSpan)
	frame.EMA26 = EMA(closes, cfg.EMASlowSpan)
	frame.VolumeSMA = SMA(frame.Volumes(), cfg.VolumePeriod)

	frame.Prepare()
	return frame
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.BollingerPeriod <= 0 {
		c.BollingerPeriod = d.BollingerPeriod
	}
	if c.BollingerStdDev <= 0 {
		c.BollingerStdDev = d.BollingerStdDev
	}
	if c.SMAFastPeriod <= 0 {
		c.SMAFastPeriod = d.SMAFastPeriod
	}
	if c.SMASlowPeriod <= 0 {
		c.SMASlowPeriod = d.SMASlowPeriod
	}
	if c.EMAFastSpan <= 0 {
		c.EMAFastSpan = d.EMAFastSpan
	}
	if c.EMASlowSpan <= 0 {
		c.EMASlowSpan = d.EMASlowSpan
	}
	if c.MACDSignalSpan <= 0 {
		c.MACDSignalSpan = d.MACDSignalSpan
	}
	if c.VolumePeriod <= 0 {
		c.VolumePeriod = d.VolumePeriod
	}
	return c
}
