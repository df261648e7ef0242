package tabular

import "github.com/joseph-ayodele/network-extractor/constants"

// Window is a half-open row range [Start, End) sent to the engine in one call.
// Index is its 0-based position, used only for progress and logs.
type Window struct {
	Index int
	Start int
	End   int
}

func (w Window) Size() int { return w.End - w.Start }

// Chunk partitions [0, rowCount) into consecutive windows of windowSize rows.
// The last window holds the remainder. A windowSize below 1 falls back to
// constants.DefaultWindowSize.
func Chunk(rowCount, windowSize int) []Window {
	if windowSize < 1 {
		windowSize = constants.DefaultWindowSize
	}
	if rowCount <= 0 {
		return nil
	}
	windows := make([]Window, 0, (rowCount+windowSize-1)/windowSize)
	for start := 0; start < rowCount; start += windowSize {
		end := min(start+windowSize, rowCount)
		windows = append(windows, Window{Index: len(windows), Start: start, End: end})
	}
	return windows
}
