package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/utils"
)

// PrinterDirectory resolves printer ids to network targets. Implementations
// must not cache: a changed address takes effect on the next dispatch.
type PrinterDirectory interface {
	ResolvePrinter(ctx context.Context, printerID string) (model.PrinterTarget, error)
	ResolveAccountPrinter(ctx context.Context, businessID string) (string, error)
}

// --- File directory (config/printers.json) ---

type FileDirectory struct {
	path string
}

func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

func (d *FileDirectory) ResolvePrinter(_ context.Context, printerID string) (model.PrinterTarget, error) {
	printers, err := utils.LoadPrinters(d.path)
	if err != nil {
		return model.PrinterTarget{}, err
	}
	for _, p := range printers {
		if p.ID == printerID && p.IsEnabled {
			return p.Target()
		}
	}
	return model.PrinterTarget{}, fmt.Errorf("%w: %s", model.ErrPrinterNotFound, printerID)
}

func (d *FileDirectory) ResolveAccountPrinter(_ context.Context, businessID string) (string, error) {
	printers, err := utils.LoadPrinters(d.path)
	if err != nil {
		return "", err
	}
	for _, p := range printers {
		if p.BusinessID == businessID && p.Role == model.RoleAccount && p.IsEnabled {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", model.ErrNoAccountPrinter, businessID)
}

// --- HTTP directory (printer API) ---

type HTTPDirectory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPDirectory(baseURL, apiKey string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type printerResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Printer *model.Printer `json:"printer"`
	} `json:"data"`
}

func (d *HTTPDirectory) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(jsonData)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("API Error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (d *HTTPDirectory) fetchPrinter(ctx context.Context, path string, notFound error, id string) (*model.Printer, error) {
	var res printerResponse
	status, err := d.do(ctx, http.MethodGet, path, nil, &res)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", notFound, id)
	}
	if err != nil {
		return nil, err
	}
	if res.Data.Printer == nil || !res.Data.Printer.IsEnabled {
		return nil, fmt.Errorf("%w: %s", notFound, id)
	}
	return res.Data.Printer, nil
}

func (d *HTTPDirectory) ResolvePrinter(ctx context.Context, printerID string) (model.PrinterTarget, error) {
	p, err := d.fetchPrinter(ctx, "/api/printers/"+url.PathEscape(printerID), model.ErrPrinterNotFound, printerID)
	if err != nil {
		return model.PrinterTarget{}, err
	}
	return p.Target()
}

func (d *HTTPDirectory) ResolveAccountPrinter(ctx context.Context, businessID string) (string, error) {
	p, err := d.fetchPrinter(ctx, "/api/businesses/"+url.PathEscape(businessID)+"/account-printer", model.ErrNoAccountPrinter, businessID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// RegisterPrinter announces a discovered printer to the API and stores the
// id the server assigns.
func (d *HTTPDirectory) RegisterPrinter(ctx context.Context, p *model.Printer) error {
	var res printerResponse
	if _, err := d.do(ctx, http.MethodPost, "/api/printers", p, &res); err != nil {
		return err
	}
	if res.Data.Printer == nil || res.Data.Printer.ID == "" {
		return fmt.Errorf("no printer id found in response")
	}
	p.ID = res.Data.Printer.ID
	return nil
}

// --- Discovery Logic ---

// DiscoverPrinters scans the local /24 for open raw-print ports and asks on
// in/out which ones to keep.
func DiscoverPrinters(in io.Reader, out io.Writer, businessID string) []model.Printer {
	localIP, err := utils.DetectLocalIP()
	if err != nil {
		log.Println("Error detecting IP:", err)
		return nil
	}
	parts := strings.Split(localIP, ".")
	subnet := strings.Join(parts[:3], ".")
	fmt.Fprintf(out, "Scanning subnet: %s.0/24\n", subnet)

	ipChan := make(chan string, 256)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if utils.PortOpen(ip, model.DefaultPrinterPort) {
					foundChan <- ip
				}
			}
		}()
	}

	for i := 1; i <= 254; i++ {
		ipChan <- fmt.Sprintf("%s.%d", subnet, i)
	}
	close(ipChan)

	go func() {
		wg.Wait()
		close(foundChan)
	}()

	var newPrinters []model.Printer
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		ans, _ := reader.ReadString('\n')
		return strings.TrimSpace(ans)
	}

	for ip := range foundChan {
		if strings.ToLower(ask(fmt.Sprintf("Found printer at %s. Add this printer? (y/n): ", ip))) != "y" {
			continue
		}
		p := model.Printer{
			IP:         ip,
			Port:       model.DefaultPrinterPort,
			IsEnabled:  true,
			BusinessID: businessID,
		}
		p.Name = ask("  Name (e.g., Kitchen): ")
		p.ID = utils.Slug(p.Name)
		p.Description = ask("  Description (e.g., Thermal Printer): ")
		p.Role = model.PrinterRole(strings.ToLower(ask("  Role (kitchen/bar/account): ")))
		if p.Role == "" {
			p.Role = model.RoleKitchen
		}
		newPrinters = append(newPrinters, p)
	}
	return newPrinters
}
