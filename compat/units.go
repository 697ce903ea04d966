package compat

// PointsPerInch is the typographic point density used for physical units.
const PointsPerInch = 72.0

// DefaultPPI is used when a document records no usable resolution.
const DefaultPPI = 72.0

// PixelsPerPoint converts a pixels-per-inch resolution to pixels per point.
func PixelsPerPoint(ppi float64) float64 {
	if ppi <= 0 {
		ppi = DefaultPPI
	}
	return ppi / PointsPerInch
}

// ToPoints converts a pixel length to points at resolution ppi.
func ToPoints(px, ppi float64) float64 { return px / PixelsPerPoint(ppi) }

// ToPixels converts a length in points to pixels at resolution ppi.
func ToPixels(pt, ppi float64) float64 { return pt * PixelsPerPoint(ppi) }
