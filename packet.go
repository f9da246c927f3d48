package tpx3

// PacketTag is the top-nibble discriminant of a raw 64-bit TPX3 packet.
type PacketTag uint8

const (
	TagHit        PacketTag = 0xB
	TagTDCFamily  PacketTag = 0x6
	TagGlobalTime PacketTag = 0x4
	TagControl    PacketTag = 0x7
)

// TDC sub-tag, carried in bits 59..56 when Tag == TagTDCFamily.
const (
	TDCSubtype1Rising  uint8 = 0x6F
	TDCSubtype1Falling uint8 = 0x6A
	TDCSubtype2Rising  uint8 = 0x6E
	TDCSubtype2Falling uint8 = 0x6B
)

// HeaderMagic is "TPX3" packed little-endian into the low 32 bits of a
// section-header packet.
const HeaderMagic uint32 = 0x33585054

// Packet is a thin wrapper over the raw little-endian 64-bit word read off
// the wire. All field extraction is pure bit arithmetic; nothing here can
// fail.
type Packet uint64

// Tag returns the top-nibble discriminant.
func (p Packet) Tag() PacketTag {
	return PacketTag((p >> 60) & 0xF)
}

// IsHeader reports whether this packet carries the "TPX3" magic cookie in
// its low 32 bits, which is only possible for a dedicated header packet;
// no hit payload bit pattern can alias it since hits never fill the full
// low word with the magic value by construction of the wire format.
func (p Packet) IsHeader() bool {
	return uint32(p) == HeaderMagic
}

// ChipID returns the header packet's chip identifier (bits 39..32). Only
// meaningful when IsHeader() is true.
func (p Packet) ChipID() uint8 {
	return uint8((p >> 32) & 0xFF)
}

// IsHit reports whether this is a pixel-hit packet.
func (p Packet) IsHit() bool {
	return !p.IsHeader() && p.Tag() == TagHit
}

// IsTDCFamily reports whether this packet is any TDC variant.
func (p Packet) IsTDCFamily() bool {
	return !p.IsHeader() && p.Tag() == TagTDCFamily
}

// TDCSubtype returns the packet's top byte (bits 63..56: tag nibble plus
// sub-tag nibble), meaningful only when IsTDCFamily(). Comparing the full
// byte against the TDCSubtype* constants is simpler than separating tag
// and sub-tag since the sub-tag space is only defined within the TDC tag.
func (p Packet) TDCSubtype() uint8 {
	return uint8((p >> 56) & 0xFF)
}

// IsTDC1Rising reports whether this packet is the pulse-trigger TDC edge,
// the only TDC kind the core consumes.
func (p Packet) IsTDC1Rising() bool {
	if !p.IsTDCFamily() {
		return false
	}
	return p.TDCSubtype() == TDCSubtype1Rising
}

// TDCTimestamp returns the 30-bit TDC timestamp in 25ns ticks (bits 41..12).
// Meaningful only when IsTDCFamily().
func (p Packet) TDCTimestamp() uint32 {
	return uint32((p >> 12) & 0x3FFFFFFF)
}

// IsGlobalTime reports whether this is a global-time packet, preserved but
// not consumed by the core.
func (p Packet) IsGlobalTime() bool {
	return !p.IsHeader() && p.Tag() == TagGlobalTime
}

// IsControl reports whether this is a control packet, or any packet whose
// tag does not match a recognised variant; unknown subtypes are
// classified as Control and must not poison the stream.
func (p Packet) IsControl() bool {
	if p.IsHeader() || p.IsHit() || p.IsTDCFamily() || p.IsGlobalTime() {
		return false
	}
	return true
}

// HitFields holds the raw (uncorrected) fields decoded from a hit packet.
type HitFields struct {
	LocalX    uint16
	LocalY    uint16
	Timestamp uint32 // 30-bit coarse timestamp, (SPIDR<<14)|ToA, in 25ns ticks
	ToT       uint16 // 10-bit time-over-threshold
}

// DecodeHit extracts the raw hit fields from a hit packet. The caller must
// have already verified IsHit(); behaviour is otherwise unspecified.
//
// Local pixel address decoding follows the Timepix3 16-bit pixel-address
// convention (bits 59..44): a 7-bit double-column index (bits 59..53, even
// steps of 2), a 6-bit super-pixel row index (bits 52..47, steps of 4), and
// a 3-bit intra-super-pixel offset (bits 46..44) whose top bit selects
// between the double-column's two physical columns and whose bottom two
// bits select the row within the super-pixel. Column and row together
// address the full 256x256 chip. ToA (14-bit low timestamp half, bits
// 43..30) and SPIDR (16-bit high half, bits 15..0) concatenate into the
// 30-bit coarse timestamp; ToT (bits 29..20) is a 10-bit amplitude proxy
// widened to 16 bits.
func (p Packet) DecodeHit() HitFields {
	dcol := uint16((p>>53)&0x7F) << 1
	spix := uint16((p>>47)&0x3F) << 2
	pix := uint16((p >> 44) & 0x7)

	col := dcol + pix/4
	row := spix + pix%4

	toa := uint32((p >> 30) & 0x3FFF)
	tot := uint16((p >> 20) & 0x3FF)
	spidr := uint32(p & 0xFFFF)

	timestamp := (spidr << 14) | toa

	return HitFields{
		LocalX:    col,
		LocalY:    row,
		Timestamp: timestamp,
		ToT:       tot,
	}
}
