package utils

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// --- Utility Functions ---

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

func PortOpen(ip string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, fmt.Sprint(port)), 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Slug turns a display name into a printer id: "Bar 2" -> "bar-2".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// LoadPrinters reads the printers file. A missing file is an empty directory.
func LoadPrinters(printersFile string) ([]model.Printer, error) {
	data, err := os.ReadFile(printersFile)
	if os.IsNotExist(err) {
		return []model.Printer{}, nil
	}
	if err != nil {
		return nil, err
	}
	var printers []model.Printer
	if err := json.Unmarshal(data, &printers); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", printersFile, err)
	}
	return printers, nil
}

// SavePrinters merges printers into the file, keyed by id. Existing entries
// are kept; new ids are appended.
func SavePrinters(printersFile string, printers []model.Printer) error {
	configDir := filepath.Dir(printersFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	existingPrinters, err := LoadPrinters(printersFile)
	if err != nil {
		return fmt.Errorf("failed to read existing printers file: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range existingPrinters {
		seen[p.ID] = true
	}
	for _, p := range printers {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		if p.Port == 0 {
			p.Port = model.DefaultPrinterPort
		}
		seen[p.ID] = true
		existingPrinters = append(existingPrinters, p)
	}

	data, err := json.MarshalIndent(existingPrinters, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(printersFile, data, 0644)
}
