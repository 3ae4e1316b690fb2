package escpos

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// MaxItemName is the longest item name printed before truncation.
const MaxItemName = 25

type DocumentKind string

const (
	KindKitchen      DocumentKind = "kitchen"
	KindCancellation DocumentKind = "cancellation"
	KindAccount      DocumentKind = "account"
	KindDrawer       DocumentKind = "drawer"
)

// Document is an assembled receipt ready for encoding.
type Document struct {
	Kind      DocumentKind
	Logo      *Raster
	Lines     []string
	Drawer    bool
	DrawerPin int
}

// TicketHeader is the staff/table/time block printed under the title.
type TicketHeader struct {
	Staff  string
	Table  string
	Time   time.Time
	Number int64
}

type Receipt struct {
	Business model.Business
	Staff    string
	Table    string
	Time     time.Time
	Groups   []model.LineItemGroup
}

type Builder struct {
	Layout     Layout
	Labels     model.Labels
	Currency   string
	TimeFormat string
	FeedLines  int
	Cut        bool
}

func NewBuilder(cfg model.LayoutConfig, labels model.Labels) *Builder {
	return &Builder{
		Layout:     NewLayout(cfg.PageWidth, cfg.ContentWidth),
		Labels:     labels,
		Currency:   cfg.Currency,
		TimeFormat: cfg.TimeFormat,
		FeedLines:  cfg.FeedLines,
		Cut:        cfg.Cut,
	}
}

// FormatAmount renders minor units as "1234,50 TL".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	s := fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// ReasonTag is the bracketed prefix on cancellation lines.
func ReasonTag(s model.ItemStatus) string {
	switch s {
	case model.StatusGift:
		return "[COMP]"
	case model.StatusWaste:
		return "[WASTE]"
	default:
		return "[CANCEL]"
	}
}

// itemLine transliterates before truncating so expansions like "ß" -> "ss"
// still fit within MaxItemName.
func itemLine(g model.LineItemGroup) string {
	return fmt.Sprintf("%dx %s", g.Quantity, TruncateName(Transliterate(g.Name), MaxItemName))
}

func (b *Builder) header(h TicketHeader) []string {
	l := b.Layout
	var lines []string
	if h.Staff != "" {
		lines = append(lines, l.AlignLeftRight(b.Labels.Staff+":", h.Staff))
	}
	if h.Table != "" {
		lines = append(lines, l.AlignLeftRight(b.Labels.Table+":", h.Table))
	}
	lines = append(lines, l.AlignLeftRight(b.Labels.Time+":", h.Time.Format(b.TimeFormat)))
	return lines
}

func (b *Builder) ticketFooter(h TicketHeader) []string {
	return []string{
		b.Layout.Separator(),
		b.Layout.Left(b.Labels.TicketNumber + ": #" + strconv.FormatInt(h.Number, 10)),
	}
}

func (b *Builder) KitchenTicket(h TicketHeader, groups []model.LineItemGroup) Document {
	l := b.Layout
	lines := []string{l.Center(b.Labels.KitchenTitle), l.Separator()}
	lines = append(lines, b.header(h)...)
	lines = append(lines, l.Separator())
	for _, g := range groups {
		lines = append(lines, l.Left(itemLine(g)))
		if g.Note != "" {
			lines = append(lines, l.Left("    "+g.Note))
		}
		for _, m := range g.Modifiers {
			lines = append(lines, l.Left("    + "+m))
		}
	}
	lines = append(lines, b.ticketFooter(h)...)
	return Document{Kind: KindKitchen, Lines: lines}
}

func (b *Builder) CancellationTicket(h TicketHeader, groups []model.LineItemGroup) Document {
	l := b.Layout
	lines := []string{l.Center(b.Labels.CancelTitle), l.Separator()}
	lines = append(lines, b.header(h)...)
	lines = append(lines, l.Separator())
	for _, g := range groups {
		lines = append(lines, l.Left(ReasonTag(g.Status)+" "+itemLine(g)))
		if g.Note != "" {
			lines = append(lines, l.Left("    "+g.Note))
		}
	}
	lines = append(lines, b.ticketFooter(h)...)
	return Document{Kind: KindCancellation, Lines: lines}
}

// AccountReceipt lists unpaid lines with the remaining balance and, when
// present, a separate already-paid section. Gift, waste and cancelled lines
// are left out of both.
func (b *Builder) AccountReceipt(r Receipt, logo *Raster) Document {
	l := b.Layout
	var lines []string
	if logo == nil && r.Business.Name != "" {
		lines = append(lines, l.Center(r.Business.Name))
	}
	if r.Business.Address != "" {
		lines = append(lines, l.Center(r.Business.Address))
	}
	lines = append(lines, l.Separator())
	lines = append(lines, b.header(TicketHeader{Staff: r.Staff, Table: r.Table, Time: r.Time})...)
	lines = append(lines, l.Separator())

	var unpaid, paid int64
	var paidGroups []model.LineItemGroup
	for _, g := range r.Groups {
		switch {
		case g.Status == model.StatusPaid:
			paidGroups = append(paidGroups, g)
			paid += g.SubtotalCents()
		case g.Status.Payable():
			unpaid += g.SubtotalCents()
			lines = append(lines, l.AlignLeftRight(itemLine(g), FormatAmount(g.SubtotalCents(), b.Currency)))
		}
	}
	lines = append(lines, l.Separator())
	lines = append(lines, l.AlignLeftRight(b.Labels.RemainingTotal, FormatAmount(unpaid, b.Currency)))

	if len(paidGroups) > 0 {
		lines = append(lines, l.Separator(), l.Center(b.Labels.PaidSection))
		for _, g := range paidGroups {
			lines = append(lines, l.AlignLeftRight("[PAID] "+itemLine(g), FormatAmount(g.SubtotalCents(), b.Currency)))
		}
		lines = append(lines, l.AlignLeftRight(b.Labels.PaidTotal, FormatAmount(paid, b.Currency)))
	}
	lines = append(lines, l.Separator(), l.Center(b.Labels.Closing))

	return Document{Kind: KindAccount, Logo: logo, Lines: lines}
}

func (b *Builder) DrawerKick(pin int) Document {
	return Document{Kind: KindDrawer, Drawer: true, DrawerPin: pin}
}

// Encode produces the byte stream sent to the printer.
func (b *Builder) Encode(doc Document) []byte {
	var buf bytes.Buffer
	buf.Write(Initialize())
	if doc.Logo != nil {
		buf.Write(SetAlign(AlignCenter))
		buf.Write(RasterImage(*doc.Logo))
		buf.Write(LineFeed())
		buf.Write(SetAlign(AlignLeft))
	}
	for _, line := range doc.Lines {
		buf.WriteString(strings.TrimRight(line, " "))
		buf.Write(LineFeed())
	}
	if doc.Drawer {
		buf.Write(DrawerPulse(doc.DrawerPin))
	}
	if doc.Kind == KindDrawer {
		return buf.Bytes()
	}
	if b.Cut {
		buf.Write(FeedLines(b.FeedLines))
		buf.Write(PartialCut())
	} else {
		// no cutter: feed far enough to tear off cleanly
		buf.Write(FeedLines(b.FeedLines * 2))
	}
	return buf.Bytes()
}
