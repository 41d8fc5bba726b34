package progress

// Phase classifies how far a session has come.
type Phase string

const (
	PhaseInProgress   Phase = "IN_PROGRESS"
	PhaseOneRemaining Phase = "ONE_REMAINING"
	PhaseComplete     Phase = "COMPLETE"
)

// Classify derives the phase from the counter and the limit alone.
// A counter above the limit is treated as complete.
func Classify(counter, maxVideos int) Phase {
	switch {
	case counter >= maxVideos:
		return PhaseComplete
	case counter == maxVideos-1:
		return PhaseOneRemaining
	default:
		return PhaseInProgress
	}
}

// Phase is shorthand for Classify(p.Counter, p.MaxVideos).
func (p Progress) Phase() Phase {
	return Classify(p.Counter, p.MaxVideos)
}

// Summary is the proportion shown by the progress indicator.
type Summary struct {
	Done  int     `json:"done"`
	Total int     `json:"total"`
	Ratio float64 `json:"ratio"`
}

// Summarize projects the state onto done/total.
// POST: Ratio is 0 when Total is not positive
func Summarize(p Progress) Summary {
	s := Summary{Done: p.Counter, Total: p.MaxVideos}
	if s.Total > 0 {
		s.Ratio = float64(s.Done) / float64(s.Total)
	}
	return s
}
