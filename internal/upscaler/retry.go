package upscaler

// RetryAction identifies which fix was applied (or none).
type RetryAction int

const (
	RetryNone        RetryAction = iota
	RetrySmallerTile             // Re-run with a smaller tile after a GPU out-of-memory.
)

const (
	maxAttempts  = 4
	minTileSize  = 32
	firstTryTile = 200 // Replaces "auto" (0) on the first fallback.
)

// RetryState tracks which fallback fixes have been applied across attempts
// for a single image.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	TileSize    int // 0 = let the tool choose.
}

// NewRetryState starts from the tile size the job asked for.
func NewRetryState(tileSize int) *RetryState {
	return &RetryState{MaxAttempts: maxAttempts, TileSize: tileSize}
}

// Advance inspects stderr from a failed run and, when the failure is a
// fixable one, applies the fix and returns the action taken. It returns
// RetryNone when nothing matches, the tile cannot shrink further or the
// attempt limit is reached.
func (s *RetryState) Advance(stderr string) RetryAction {
	s.Attempt++
	if s.Attempt >= s.MaxAttempts {
		return RetryNone
	}
	if !reOutOfMemory.MatchString(stderr) {
		return RetryNone
	}

	switch {
	case s.TileSize == 0:
		s.TileSize = firstTryTile
	case s.TileSize > minTileSize:
		s.TileSize = max(s.TileSize/2, minTileSize)
	default:
		return RetryNone
	}
	return RetrySmallerTile
}
