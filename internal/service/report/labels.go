package report

// RateLabel rates an average speaking rate in SPM.
func RateLabel(spm int) string {
	switch {
	case spm >= 410:
		return "fast"
	case spm >= 370:
		return "slightly_fast"
	case spm >= 330:
		return "appropriate"
	case spm >= 290:
		return "slightly_slow"
	default:
		return "slow"
	}
}

// FillerLabel rates filler words per minute.
func FillerLabel(fwpm float64) string {
	switch {
	case fwpm >= 5.0:
		return "many"
	case fwpm >= 3.0:
		return "somewhat_many"
	case fwpm > 0.0:
		return "appropriate"
	default:
		return "none"
	}
}
