package model

import (
	"fmt"
	"time"
)

// --- Configuration Structures ---

type Config struct {
	AppVersion string `yaml:"app_version"`

	Feed struct {
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	} `yaml:"feed"`

	Directory struct {
		Backend      string `yaml:"backend"` // file, sqlite, http
		PrintersFile string `yaml:"printers_file"`
		APIURL       string `yaml:"api_url"`
	} `yaml:"directory"`

	Store struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"store"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Address      string `yaml:"address"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		QueueKey     string `yaml:"queue_key"`
		StatusPrefix string `yaml:"status_prefix"`
	} `yaml:"redis"`

	Status struct {
		Backend string `yaml:"backend"` // feed, sqlite, redis
	} `yaml:"status"`

	Layout LayoutConfig `yaml:"layout"`
	Labels Labels       `yaml:"labels"`

	Aggregator struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"aggregator"`

	Dispatch struct {
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		SettleDelay  time.Duration `yaml:"settle_delay"`
	} `yaml:"dispatch"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

type LayoutConfig struct {
	PageWidth    int    `yaml:"page_width"`
	ContentWidth int    `yaml:"content_width"`
	LogoWidth    int    `yaml:"logo_width"`
	FeedLines    int    `yaml:"feed_lines"`
	Cut          bool   `yaml:"cut"`
	Currency     string `yaml:"currency"`
	TimeFormat   string `yaml:"time_format"`
}

// Labels are the printed captions. Printer firmware has no extended font
// table, so they are transliterated before printing anyway.
type Labels struct {
	KitchenTitle   string `yaml:"kitchen_title"`
	CancelTitle    string `yaml:"cancel_title"`
	Staff          string `yaml:"staff"`
	Table          string `yaml:"table"`
	Time           string `yaml:"time"`
	TicketNumber   string `yaml:"ticket_number"`
	RemainingTotal string `yaml:"remaining_total"`
	PaidSection    string `yaml:"paid_section"`
	PaidTotal      string `yaml:"paid_total"`
	Closing        string `yaml:"closing"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
	BackendFeed   = "feed"
	BackendRedis  = "redis"
)

func DefaultLabels() Labels {
	return Labels{
		KitchenTitle:   "YENI SIPARIS",
		CancelTitle:    "!!! CANCELLATION !!!",
		Staff:          "Personel",
		Table:          "Masa",
		Time:           "Saat",
		TicketNumber:   "Fis No",
		RemainingTotal: "KALAN TOPLAM",
		PaidSection:    "ODENENLER",
		PaidTotal:      "ODENEN TOPLAM",
		Closing:        "Afiyet olsun!",
	}
}

func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		PageWidth:    40,
		ContentWidth: 32,
		LogoWidth:    128,
		FeedLines:    4,
		Cut:          true,
		Currency:     "TL",
		TimeFormat:   "02/01/2006 15:04",
	}
}

// ApplyDefaults fills every zero value.
func (c *Config) ApplyDefaults() {
	if c.Feed.ReconnectDelay <= 0 {
		c.Feed.ReconnectDelay = 5 * time.Second
	}
	if c.Directory.Backend == "" {
		c.Directory.Backend = BackendFile
	}
	if c.Directory.PrintersFile == "" {
		c.Directory.PrintersFile = "config/printers.json"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/printbridge.db"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.QueueKey == "" {
		c.Redis.QueueKey = "printbridge:jobs"
	}
	if c.Redis.StatusPrefix == "" {
		c.Redis.StatusPrefix = "printbridge:job:"
	}
	if c.Status.Backend == "" {
		c.Status.Backend = BackendFeed
	}

	def := DefaultLayout()
	if c.Layout.PageWidth <= 0 {
		c.Layout.PageWidth = def.PageWidth
	}
	if c.Layout.ContentWidth <= 0 {
		c.Layout.ContentWidth = def.ContentWidth
	}
	if c.Layout.LogoWidth <= 0 {
		c.Layout.LogoWidth = def.LogoWidth
	}
	if c.Layout.FeedLines <= 0 {
		c.Layout.FeedLines = def.FeedLines
	}
	if c.Layout.Currency == "" {
		c.Layout.Currency = def.Currency
	}
	if c.Layout.TimeFormat == "" {
		c.Layout.TimeFormat = def.TimeFormat
	}

	labels := DefaultLabels()
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Labels.KitchenTitle, labels.KitchenTitle)
	fill(&c.Labels.CancelTitle, labels.CancelTitle)
	fill(&c.Labels.Staff, labels.Staff)
	fill(&c.Labels.Table, labels.Table)
	fill(&c.Labels.Time, labels.Time)
	fill(&c.Labels.TicketNumber, labels.TicketNumber)
	fill(&c.Labels.RemainingTotal, labels.RemainingTotal)
	fill(&c.Labels.PaidSection, labels.PaidSection)
	fill(&c.Labels.PaidTotal, labels.PaidTotal)
	fill(&c.Labels.Closing, labels.Closing)

	if c.Aggregator.Window <= 0 {
		c.Aggregator.Window = 1500 * time.Millisecond
	}
	if c.Dispatch.DialTimeout <= 0 {
		c.Dispatch.DialTimeout = 5 * time.Second
	}
	if c.Dispatch.WriteTimeout <= 0 {
		c.Dispatch.WriteTimeout = 5 * time.Second
	}
	if c.Dispatch.SettleDelay < 0 {
		c.Dispatch.SettleDelay = 0
	}
	if c.Metrics.Port <= 0 {
		c.Metrics.Port = 9090
	}
}

func (c *Config) Validate() error {
	if c.Layout.ContentWidth > c.Layout.PageWidth {
		return fmt.Errorf("layout: content_width %d exceeds page_width %d", c.Layout.ContentWidth, c.Layout.PageWidth)
	}
	if c.Layout.LogoWidth%8 != 0 {
		return fmt.Errorf("layout: logo_width %d is not a multiple of 8", c.Layout.LogoWidth)
	}
	switch c.Directory.Backend {
	case BackendFile, BackendSQLite, BackendHTTP:
	default:
		return fmt.Errorf("directory: unknown backend %q", c.Directory.Backend)
	}
	if c.Directory.Backend == BackendHTTP && c.Directory.APIURL == "" {
		return fmt.Errorf("directory: api_url is required for the http backend")
	}
	switch c.Status.Backend {
	case BackendFeed, BackendSQLite:
	case BackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("status: redis backend requires redis.enabled")
		}
	default:
		return fmt.Errorf("status: unknown backend %q", c.Status.Backend)
	}
	return nil
}
