package escpos

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Initialize resets the printer (ESC @).
func Initialize() []byte {
	return []byte{esc, '@'}
}

// SetAlign selects justification (ESC a n).
func SetAlign(a Align) []byte {
	return []byte{esc, 'a', byte(a)}
}

func LineFeed() []byte {
	return []byte{lf}
}

// FeedLines prints the buffer and feeds n lines (ESC d n).
func FeedLines(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	return []byte{esc, 'd', byte(n)}
}

// PartialCut feeds to the cutter and cuts leaving one point uncut (GS V A 0).
func PartialCut() []byte {
	return []byte{gs, 'V', 0x41, 0x00}
}

// DrawerPulse kicks the cash drawer on pin 2 (pin=0) or pin 5 (pin=1):
// ESC p m t1 t2 with 50 ms on / 500 ms off.
func DrawerPulse(pin int) []byte {
	return []byte{esc, 'p', byte(pin & 1), 25, 250}
}

// RasterImage emits GS v 0 in normal mode followed by the packed rows.
func RasterImage(r Raster) []byte {
	out := make([]byte, 0, 8+len(r.Data))
	out = append(out,
		gs, 'v', '0', 0x00,
		byte(r.WidthBytes), byte(r.WidthBytes>>8),
		byte(r.Height), byte(r.Height>>8),
	)
	return append(out, r.Data...)
}
