package cli

import "context"

// Rows taken by the header (title, separator) and the status bar
// (separator, key hints).
const chromeRows = 4

// SharedState is the one value every view on the stack points at.
type SharedState struct {
	App *App
	Ctx context.Context // bounds backend calls made from the shell

	Width, Height int
}

// ContentHeight is the number of rows a view may fill, never less than one.
func (s *SharedState) ContentHeight() int {
	return max(s.Height-chromeRows, 1)
}
