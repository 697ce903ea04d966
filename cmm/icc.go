package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/psdkit/stream"
)

const (
	iccHeaderSize = 128
	maxTagCount   = 1024
)

// ICCProfile implements Profile for ICC data.
type ICCProfile struct {
	data []byte
	name string
}

// NewICCProfile creates a new ICCProfile from bytes. The header must be
// complete and carry the "acsp" file signature.
func NewICCProfile(data []byte) (*ICCProfile, error) {
	if len(data) < iccHeaderSize {
		return nil, errors.New("invalid ICC profile data")
	}
	if string(data[36:40]) != "acsp" {
		return nil, fmt.Errorf("invalid ICC signature %q", data[36:40])
	}
	p := &ICCProfile{data: data}
	p.name = p.description()
	return p, nil
}

func (p *ICCProfile) Name() string {
	if p.name != "" {
		return p.name
	}
	return "ICC Profile"
}

func (p *ICCProfile) ColorSpace() string { return string(p.data[16:20]) }

func (p *ICCProfile) Class() string { return string(p.data[12:16]) }

// Version returns the major.minor profile version.
func (p *ICCProfile) Version() string {
	return fmt.Sprintf("%d.%d", p.data[8], p.data[9]>>4)
}

func (p *ICCProfile) Data() []byte {
	return p.data
}

// tag returns the payload of the tag with signature sig.
func (p *ICCProfile) tag(sig string) []byte {
	if len(p.data) < iccHeaderSize+4 {
		return nil
	}
	count := binary.BigEndian.Uint32(p.data[iccHeaderSize:])
	if count > maxTagCount {
		return nil
	}
	for i := uint32(0); i < count; i++ {
		base := iccHeaderSize + 4 + int(i)*12
		if base+12 > len(p.data) {
			return nil
		}
		if string(p.data[base:base+4]) != sig {
			continue
		}
		off := int(binary.BigEndian.Uint32(p.data[base+4:]))
		size := int(binary.BigEndian.Uint32(p.data[base+8:]))
		if off < 0 || size < 0 || off+size > len(p.data) {
			return nil
		}
		return p.data[off : off+size]
	}
	return nil
}

// description decodes the 'desc' tag as textDescriptionType (v2) or
// multiLocalizedUnicodeType (v4), preferring the first record.
func (p *ICCProfile) description() string {
	t := p.tag("desc")
	if len(t) < 12 {
		return ""
	}
	switch string(t[0:4]) {
	case "desc":
		n := int(binary.BigEndian.Uint32(t[8:]))
		if n <= 0 || 12+n > len(t) {
			return ""
		}
		return strings.TrimRight(string(t[12:12+n]), "\x00")
	case "mluc":
		if len(t) < 16 {
			return ""
		}
		records := binary.BigEndian.Uint32(t[8:])
		if records == 0 || len(t) < 28 {
			return ""
		}
		length := int(binary.BigEndian.Uint32(t[20:]))
		off := int(binary.BigEndian.Uint32(t[24:]))
		if off+length > len(t) {
			return ""
		}
		return stream.DecodeUTF16BE(t[off : off+length])
	}
	return ""
}
