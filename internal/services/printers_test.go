package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

func writePrintersFile(t *testing.T, path string, printers ...model.Printer) {
	t.Helper()
	data, err := json.MarshalIndent(printers, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestFileDirectoryRereadsOnEveryLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printers.json")
	writePrintersFile(t, path, model.Printer{ID: "kitchen", IP: "10.0.0.10", IsEnabled: true})
	dir := NewFileDirectory(path)

	target, err := dir.ResolvePrinter(context.Background(), "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10:9100", target.Address())

	writePrintersFile(t, path, model.Printer{ID: "kitchen", IP: "10.0.0.11", Port: 9101, IsEnabled: true})
	target, err = dir.ResolvePrinter(context.Background(), "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.11:9101", target.Address())
}

func TestFileDirectoryLookups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printers.json")
	writePrintersFile(t, path,
		model.Printer{ID: "off", IP: "10.0.0.12", IsEnabled: false},
		model.Printer{ID: "till-old", IP: "10.0.0.13", Role: model.RoleAccount, BusinessID: "biz", IsEnabled: false},
		model.Printer{ID: "till", IP: "10.0.0.14", Role: model.RoleAccount, BusinessID: "biz", IsEnabled: true},
	)
	dir := NewFileDirectory(path)

	_, err := dir.ResolvePrinter(context.Background(), "off")
	assert.ErrorIs(t, err, model.ErrPrinterNotFound)
	_, err = dir.ResolvePrinter(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrPrinterNotFound)

	id, err := dir.ResolveAccountPrinter(context.Background(), "biz")
	require.NoError(t, err)
	assert.Equal(t, "till", id)

	_, err = dir.ResolveAccountPrinter(context.Background(), "other")
	assert.ErrorIs(t, err, model.ErrNoAccountPrinter)
}

func printerAPI(t *testing.T) (*httptest.Server, *[]model.Printer) {
	t.Helper()
	var registered []model.Printer
	reply := func(w http.ResponseWriter, p model.Printer) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"printer": p}})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/printers/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "bar":
			reply(w, model.Printer{ID: "bar", IP: "192.168.1.40:9200", IsEnabled: true})
		case "retired":
			reply(w, model.Printer{ID: "retired", IP: "192.168.1.41", IsEnabled: false})
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	})
	mux.HandleFunc("GET /api/businesses/{id}/account-printer", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "biz-1" {
			http.NotFound(w, r)
			return
		}
		reply(w, model.Printer{ID: "till", IP: "192.168.1.50", Role: model.RoleAccount, IsEnabled: true})
	})
	mux.HandleFunc("POST /api/printers", func(w http.ResponseWriter, r *http.Request) {
		var p model.Printer
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		registered = append(registered, p)
		p.ID = "srv-" + p.Name
		reply(w, p)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &registered
}

func TestHTTPDirectoryResolve(t *testing.T) {
	srv, _ := printerAPI(t)
	dir := NewHTTPDirectory(srv.URL+"/", "secret")
	ctx := context.Background()

	target, err := dir.ResolvePrinter(ctx, "bar")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.40:9200", target.Address())

	_, err = dir.ResolvePrinter(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrPrinterNotFound)
	_, err = dir.ResolvePrinter(ctx, "retired")
	assert.ErrorIs(t, err, model.ErrPrinterNotFound)

	id, err := dir.ResolveAccountPrinter(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "till", id)
	_, err = dir.ResolveAccountPrinter(ctx, "biz-2")
	assert.ErrorIs(t, err, model.ErrNoAccountPrinter)
}

func TestHTTPDirectoryRejectsBadKey(t *testing.T) {
	srv, _ := printerAPI(t)
	dir := NewHTTPDirectory(srv.URL, "wrong")

	_, err := dir.ResolvePrinter(context.Background(), "bar")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrPrinterNotFound)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPDirectoryRegisterPrinter(t *testing.T) {
	srv, registered := printerAPI(t)
	dir := NewHTTPDirectory(srv.URL, "secret")

	p := &model.Printer{Name: "grill", IP: "192.168.1.60", Port: 9100, Role: model.RoleKitchen, IsEnabled: true}
	require.NoError(t, dir.RegisterPrinter(context.Background(), p))
	assert.Equal(t, "srv-grill", p.ID)
	require.Len(t, *registered, 1)
	assert.Equal(t, "192.168.1.60", (*registered)[0].IP)
}
