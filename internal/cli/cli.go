// Package cli is the printbridge command line.
//
//	printbridge
//	├── run                         # connect to the feed and print until stopped
//	├── discover [--business id]    # scan the LAN for raw-print ports
//	├── test-print <printer-id>     # send a sample kitchen ticket
//	├── preview <fixture.json>      # screenshot an account receipt fixture
//	│   └── --output, -o
//	└── --config, -c                # YAML config (created on first run)
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/services"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/store"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/utils"
)

const (
	Version           = "2.0.0"
	DefaultConfigFile = "config/config.yaml"
)

var configFile string

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "printbridge",
		Short: "Perfect Menu print bridge",
		Long: `Bridges the restaurant order feed to LAN thermal printers:
- kitchen tickets for new items, grouped per table
- cancellation tickets for voided items
- account receipts and drawer kicks on request`,
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", DefaultConfigFile, "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildDiscoverCommand())
	rootCmd.AddCommand(buildTestPrintCommand())
	rootCmd.AddCommand(buildPreviewCommand())

	return rootCmd
}

// loadConfig honours --config over whatever path main put in the context.
func loadConfig(cmd *cobra.Command) (model.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, model.ContextConfigFile, configFile)
	if _, ok := ctx.Value(model.ContextAppVersion).(string); !ok {
		ctx = context.WithValue(ctx, model.ContextAppVersion, Version)
	}
	cfg, err := utils.LoadOrSetupConfig(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resources holds the lazily opened backends shared by the run command.
type resources struct {
	cfg    model.Config
	sqlite *store.SQLite
	redis  *store.RedisQueue
}

func (r *resources) openSQLite() (*store.SQLite, error) {
	if r.sqlite != nil {
		return r.sqlite, nil
	}
	db, err := store.OpenSQLite(r.cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	r.sqlite = db
	return db, nil
}

func (r *resources) Close() {
	if r.sqlite != nil {
		r.sqlite.Close()
	}
	if r.redis != nil {
		r.redis.Close()
	}
}

func (r *resources) directory() (services.PrinterDirectory, error) {
	switch r.cfg.Directory.Backend {
	case model.BackendSQLite:
		return r.openSQLite()
	case model.BackendHTTP:
		return services.NewHTTPDirectory(r.cfg.Directory.APIURL, r.cfg.Feed.APIKey), nil
	default:
		return services.NewFileDirectory(r.cfg.Directory.PrintersFile), nil
	}
}

func (r *resources) statusSink(feed *services.Feed) (services.StatusSink, error) {
	switch r.cfg.Status.Backend {
	case model.BackendSQLite:
		return r.openSQLite()
	case model.BackendRedis:
		if r.redis == nil {
			return nil, errors.New("redis status backend needs redis.enabled")
		}
		return r.redis, nil
	default:
		return feed, nil
	}
}

func (r *resources) dispatcher(dir services.PrinterDirectory, m *metrics.Collector) *services.Dispatcher {
	return services.NewDispatcher(dir, services.DispatcherOptions{
		DialTimeout:  r.cfg.Dispatch.DialTimeout,
		WriteTimeout: r.cfg.Dispatch.WriteTimeout,
		SettleDelay:  r.cfg.Dispatch.SettleDelay,
	}, m)
}

// --- run ---

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the print bridge",
		Long:  "Connect to the order feed (and the Redis job queue when enabled) and print until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBridge(ctx, cfg)
		},
	}
}

func runBridge(ctx context.Context, cfg model.Config) error {
	res := &resources{cfg: cfg}
	defer res.Close()

	collector := metrics.NewCollector()
	directory, err := res.directory()
	if err != nil {
		return fmt.Errorf("failed to open printer directory: %w", err)
	}

	if cfg.Redis.Enabled {
		res.redis, err = store.NewRedisQueue(ctx, store.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			QueueKey:     cfg.Redis.QueueKey,
			StatusPrefix: cfg.Redis.StatusPrefix,
		})
		if err != nil {
			return err
		}
	}

	items := make(chan model.OrderLineEvent, 64)
	transitions := make(chan model.OrderLineEvent, 64)
	jobs := make(chan model.PrintJob, 16)

	feed := services.NewFeed(services.FeedOptions{
		URL:            cfg.Feed.URL,
		APIKey:         cfg.Feed.APIKey,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
	}, services.FeedOutputs{Items: items, Transitions: transitions, Jobs: jobs})

	sink, err := res.statusSink(feed)
	if err != nil {
		return err
	}

	bridge := services.NewBridge(
		directory,
		res.dispatcher(directory, collector),
		escpos.NewBuilder(cfg.Layout, cfg.Labels),
		services.NewLogoLoader(cfg.Layout.LogoWidth),
		sink,
		collector,
		services.BridgeOptions{Window: cfg.Aggregator.Window},
	)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			log.Printf("[metrics] Starting metrics server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[metrics] Metrics server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("--- Print bridge running (directory=%s, status=%s) ---", cfg.Directory.Backend, cfg.Status.Backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx) })
	if res.redis != nil {
		g.Go(func() error { return res.redis.Run(gctx, jobs) })
	}
	g.Go(func() error {
		return bridge.Run(gctx, services.Streams{Items: items, Transitions: transitions, Jobs: jobs})
	})
	err = g.Wait()

	log.Println("Print bridge stopped.")
	return err
}

// --- discover ---

func buildDiscoverCommand() *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the local network for printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			found := services.DiscoverPrinters(cmd.InOrStdin(), cmd.OutOrStdout(), businessID)
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No printers added.")
				return nil
			}
			if err := savePrinters(commandContext(cmd), cfg, found); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d printer(s).\n", len(found))
			return nil
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "business id to attach to discovered printers")
	return cmd
}

// savePrinters stores discovered printers in whichever directory backend the
// bridge resolves from.
func savePrinters(ctx context.Context, cfg model.Config, printers []model.Printer) error {
	switch cfg.Directory.Backend {
	case model.BackendSQLite:
		db, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		for _, p := range printers {
			if err := db.UpsertPrinter(ctx, p); err != nil {
				return err
			}
		}
		return nil
	case model.BackendHTTP:
		api := services.NewHTTPDirectory(cfg.Directory.APIURL, cfg.Feed.APIKey)
		for i := range printers {
			if err := api.RegisterPrinter(ctx, &printers[i]); err != nil {
				return fmt.Errorf("failed to register %s: %w", printers[i].Name, err)
			}
			log.Printf("Registered printer '%s' as %s", printers[i].Name, printers[i].ID)
		}
		return nil
	default:
		return utils.SavePrinters(cfg.Directory.PrintersFile, printers)
	}
}

// --- test-print ---

func buildTestPrintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-print <printer-id>",
		Short: "Send a sample kitchen ticket to a printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res := &resources{cfg: cfg}
			defer res.Close()
			directory, err := res.directory()
			if err != nil {
				return err
			}

			data := sampleTicket(escpos.NewBuilder(cfg.Layout, cfg.Labels), time.Now())
			if err := res.dispatcher(directory, nil).Dispatch(commandContext(cmd), args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test ticket sent to %s.\n", args[0])
			return nil
		},
	}
}

func sampleTicket(b *escpos.Builder, now time.Time) []byte {
	doc := b.KitchenTicket(escpos.TicketHeader{Staff: "Test", Table: "0", Time: now}, []model.LineItemGroup{
		{Name: "Test print", Quantity: 1, Note: "printbridge " + Version},
	})
	return b.Encode(doc)
}

// --- preview ---

func buildPreviewCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "preview <fixture.json>",
		Short: "Render an account receipt fixture to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			chromePath, err := utils.RequireChrome()
			if err != nil {
				return err
			}
			doc, err := previewDocument(commandContext(cmd), cfg, args[0], time.Now())
			if err != nil {
				return err
			}
			b := escpos.NewBuilder(cfg.Layout, cfg.Labels)
			if err := services.RenderPreview(commandContext(cmd), chromePath, doc, b.Layout, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "receipt.png", "output PNG path")
	return cmd
}

// previewDocument builds the account receipt for a JSON payload fixture.
func previewDocument(ctx context.Context, cfg model.Config, path string, now time.Time) (escpos.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return escpos.Document{}, err
	}
	job := model.PrintJob{Type: model.JobAccountReceipt, Payload: data}
	payload, err := job.DecodePayload()
	if err != nil {
		return escpos.Document{}, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	p := payload.(model.AccountReceiptPayload)

	var logo *escpos.Raster
	if p.Business.ShowLogo && p.Business.LogoURL != "" {
		logo, err = services.NewLogoLoader(cfg.Layout.LogoWidth).Load(ctx, p.Business.LogoURL)
		if err != nil {
			log.Printf("[preview] Logo unavailable: %v", err)
		}
	}

	b := escpos.NewBuilder(cfg.Layout, cfg.Labels)
	return b.AccountReceipt(escpos.Receipt{
		Business: p.Business,
		Staff:    p.StaffName,
		Table:    p.TableName,
		Time:     now,
		Groups:   services.ReceiptGroups(p.Items),
	}, logo), nil
}
