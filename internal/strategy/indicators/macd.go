package indicators

// MACD returns the MACD line (fast EMA - slow EMA), its signal EMA and the histogram.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line = undefinedSeries(len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i] // NaN propagates
	}
	signalLine = EMA(line, signal)

	histogram = undefinedSeries(len(closes))
	for i := range closes {
		histogram[i] = line[i] - signalLine[i]
	}
	return line, signalLine, histogram
}

// Bollinger returns the upper, middle and lower bands.
func Bollinger(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	middle = SMA(closes, period)
	std := RollingStd(closes, period)
	upper = undefinedSeries(len(closes))
	lower = undefinedSeries(len(closes))
	for i := range closes {
		upper[i] = middle[i] + std[i]*stdDev
		lower[i] = middle[i] - std[i]*stdDev
	}
	return upper, middle, lower
}
