package filters

import "fmt"

const (
	// maxPlaneDimension caps width/height of a channel plane; it matches the
	// large-document format maximum.
	maxPlaneDimension = 300000
	// defaultMaxPlaneBytes bounds a single decoded plane when no limit is configured.
	defaultMaxPlaneBytes int64 = 1 << 30
)

func validatePlaneBounds(p Params, maxBytes int64) error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("plane bounds invalid (%d x %d)", p.Width, p.Height)
	}
	if p.Width > maxPlaneDimension || p.Height > maxPlaneDimension {
		return fmt.Errorf("plane dimension exceeds limit (%d x %d)", p.Width, p.Height)
	}
	switch p.Depth {
	case 1, 8, 16, 32:
	default:
		return fmt.Errorf("unsupported sample depth %d", p.Depth)
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxPlaneBytes
	}
	if n := p.PlaneBytes(); n > maxBytes {
		return fmt.Errorf("plane size %d exceeds limit %d", n, maxBytes)
	}
	return nil
}
