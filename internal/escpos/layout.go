// Package escpos turns order data into ESC/POS byte streams: fixed-width text
// layout, monochrome raster images and the three receipt documents.
package escpos

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters without a canonical decomposition, handled before NFD stripping.
var asciiFallbacks = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "đ", "d", "Đ", "D",
	"€", "EUR", "₺", "TL", "’", "'", "‘", "'", "“", "\"", "”", "\"",
	"–", "-", "—", "-", "…", "...",
)

// Transliterate maps extended Latin text onto printable ASCII. Anything left
// outside that range becomes '?'.
func Transliterate(s string) string {
	s = asciiFallbacks.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20 || r > 0x7e:
			return '?'
		}
		return r
	}, s)
}

// Layout formats lines for a fixed-width thermal printer. Content is placed
// inside PageWidth with a margin of (PageWidth-ContentWidth)/2 on the left.
type Layout struct {
	PageWidth    int
	ContentWidth int
}

func NewLayout(pageWidth, contentWidth int) Layout {
	if contentWidth > pageWidth {
		contentWidth = pageWidth
	}
	return Layout{PageWidth: pageWidth, ContentWidth: contentWidth}
}

func (l Layout) Margin() int {
	m := (l.PageWidth - l.ContentWidth) / 2
	if m < 0 {
		return 0
	}
	return m
}

func (l Layout) indent() string {
	return strings.Repeat(" ", l.Margin())
}

// Left places text at the start of the content area.
func (l Layout) Left(text string) string {
	return l.indent() + Transliterate(text)
}

// Center pads text to the middle of the content width. With odd padding the
// extra space goes to the right.
func (l Layout) Center(text string) string {
	t := Transliterate(text)
	pad := l.ContentWidth - len(t)
	if pad <= 0 {
		return l.indent() + t
	}
	left := pad / 2
	return l.indent() + strings.Repeat(" ", left) + t + strings.Repeat(" ", pad-left)
}

// AlignLeftRight puts left and right at the two ends of the content width.
// At least one space always separates them, even if the line overflows.
func (l Layout) AlignLeftRight(left, right string) string {
	lt, rt := Transliterate(left), Transliterate(right)
	gap := l.ContentWidth - len(lt) - len(rt)
	if gap < 1 {
		gap = 1
	}
	return l.indent() + lt + strings.Repeat(" ", gap) + rt
}

func (l Layout) Separator() string {
	return l.indent() + strings.Repeat("-", l.ContentWidth)
}

// TruncateName shortens name to max characters, ending in "...".
func TruncateName(name string, max int) string {
	r := []rune(name)
	if len(r) <= max {
		return name
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
