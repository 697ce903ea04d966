package security

import "time"

// Limits defines resource boundaries for decoding layered documents.
// These limits help prevent resource exhaustion (e.g., compression bombs, deep descriptor nesting).
type Limits struct {
	// Maximum width or height in pixels. Default: 300,000 (the large-document maximum).
	MaxDimension int

	// Maximum number of layer records. Default: 16,384.
	MaxLayers int

	// Maximum channels per layer record. Default: 56.
	MaxChannels int

	// Maximum compressed length of one channel (bytes). Default: 1 GB.
	MaxChannelBytes int64

	// Maximum decompressed size of one channel plane (bytes). Default: 1 GB.
	MaxDecompressedSize int64

	// Maximum payload of one image resource or tagged block (bytes). Default: 256 MB.
	MaxBlockSize int64

	// Maximum descriptor nesting depth. Default: 64.
	MaxDescriptorDepth int

	// Maximum items in one descriptor object or list. Default: 100,000.
	MaxDescriptorItems int

	// Maximum nesting depth of text engine data. Default: 128.
	MaxEngineDataDepth int

	// Maximum total decode time. Default: 5m.
	MaxParseTime time.Duration
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDimension:        300000,
		MaxLayers:           16384,
		MaxChannels:         56,
		MaxChannelBytes:     1 << 30,
		MaxDecompressedSize: 1 << 30,
		MaxBlockSize:        256 * 1024 * 1024, // 256 MB
		MaxDescriptorDepth:  64,
		MaxDescriptorItems:  100000,
		MaxEngineDataDepth:  128,
		MaxParseTime:        5 * time.Minute,
	}
}

// OrDefault fills zero fields of l from DefaultLimits.
func (l Limits) OrDefault() Limits {
	d := DefaultLimits()
	if l.MaxDimension <= 0 {
		l.MaxDimension = d.MaxDimension
	}
	if l.MaxLayers <= 0 {
		l.MaxLayers = d.MaxLayers
	}
	if l.MaxChannels <= 0 {
		l.MaxChannels = d.MaxChannels
	}
	if l.MaxChannelBytes <= 0 {
		l.MaxChannelBytes = d.MaxChannelBytes
	}
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxBlockSize <= 0 {
		l.MaxBlockSize = d.MaxBlockSize
	}
	if l.MaxDescriptorDepth <= 0 {
		l.MaxDescriptorDepth = d.MaxDescriptorDepth
	}
	if l.MaxDescriptorItems <= 0 {
		l.MaxDescriptorItems = d.MaxDescriptorItems
	}
	if l.MaxEngineDataDepth <= 0 {
		l.MaxEngineDataDepth = d.MaxEngineDataDepth
	}
	if l.MaxParseTime <= 0 {
		l.MaxParseTime = d.MaxParseTime
	}
	return l
}
