package observer

// window holds the most recent K observations of the polled response. It is
// plain data advanced one read at a time; the poll loop owns the timing.
type window struct {
	size    int
	entries []string
}

func newWindow(size int) *window {
	return &window{size: size, entries: make([]string, 0, size)}
}

// push records one observation, evicting the oldest once the window is full.
func (w *window) push(s string) {
	if len(w.entries) == w.size {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:w.size-1]
	}
	w.entries = append(w.entries, s)
}

// stable reports whether the response has stabilized: the window is full and
// every entry is byte-identical and non-empty. The common value is returned.
// This heuristic stands in for a terminal marker the relay never sends.
func (w *window) stable() (string, bool) {
	if len(w.entries) < w.size {
		return "", false
	}
	first := w.entries[0]
	if first == "" {
		return "", false
	}
	for _, entry := range w.entries[1:] {
		if entry != first {
			return "", false
		}
	}
	return first, true
}
