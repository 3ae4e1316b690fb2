package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPrinterPort is the raw-socket port used by ESC/POS network printers.
const DefaultPrinterPort = 9100

type PrinterRole string

const (
	RoleKitchen PrinterRole = "kitchen"
	RoleBar     PrinterRole = "bar"
	RoleAccount PrinterRole = "account"
)

// --- Printer directory records ---

type Printer struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	IP          string      `json:"ip" db:"ip"`
	Port        int         `json:"port" db:"port"`
	Description string      `json:"description" db:"description"`
	Role        PrinterRole `json:"role" db:"role"`
	BusinessID  string      `json:"businessId" db:"business_id"`
	IsEnabled   bool        `json:"isEnabled" db:"is_enabled"`
}

// PrinterTarget is a resolved network destination. It is fetched for every
// dispatch and never cached.
type PrinterTarget struct {
	PrinterID        string
	Name             string
	Host             string
	Port             int
	Role             PrinterRole
	BusinessID       string
	IsAccountPrinter bool
}

func (t PrinterTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Target converts a stored record into a dispatch target. The stored IP may
// carry its own port ("10.0.0.5:9101"); otherwise Port, then 9100, is used.
func (p Printer) Target() (PrinterTarget, error) {
	host := strings.TrimSpace(p.IP)
	port := p.Port
	if host == "" {
		return PrinterTarget{}, fmt.Errorf("printer %s has no address", p.ID)
	}
	if h, portStr, err := net.SplitHostPort(host); err == nil {
		n, err := strconv.Atoi(portStr)
		if err != nil {
			return PrinterTarget{}, fmt.Errorf("printer %s has invalid port %q: %w", p.ID, portStr, err)
		}
		host, port = h, n
	}
	if port <= 0 {
		port = DefaultPrinterPort
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return PrinterTarget{
		PrinterID:        p.ID,
		Name:             name,
		Host:             host,
		Port:             port,
		Role:             p.Role,
		BusinessID:       p.BusinessID,
		IsAccountPrinter: p.Role == RoleAccount,
	}, nil
}
