package catalog

// TerminalMedia points at the short videos played when one clip is left
// and when the limit is reached. Either file may be absent.
type TerminalMedia struct {
	OneMorePath  string
	FinishedPath string
}

// OnOneRemaining returns the "one more" video when it exists.
func (t TerminalMedia) OnOneRemaining() (string, bool) {
	return existing(t.OneMorePath)
}

// OnLimitReached returns the "finished" video when it exists.
func (t TerminalMedia) OnLimitReached() (string, bool) {
	return existing(t.FinishedPath)
}

func existing(path string) (string, bool) {
	if path == "" || !fileExists(path) {
		return "", false
	}
	return path, true
}
