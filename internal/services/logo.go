package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/escpos"
)

const maxLogoRedirects = 5

var ErrTooManyRedirects = errors.New("too many redirects")

// LogoLoader fetches or decodes a business logo and rasterizes it.
type LogoLoader struct {
	client *http.Client
	width  int
}

func NewLogoLoader(width int) *LogoLoader {
	return &LogoLoader{
		width: width,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxLogoRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
	}
}

// Load accepts an http(s) URL, a data: URI or bare base64.
func (l *LogoLoader) Load(ctx context.Context, source string) (*escpos.Raster, error) {
	data, err := l.read(ctx, strings.TrimSpace(source))
	if err != nil {
		return nil, err
	}
	img, err := escpos.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	r, err := escpos.Rasterize(img, l.width)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *LogoLoader) read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "":
		return nil, fmt.Errorf("empty logo source")
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.fetch(ctx, source)
	case strings.HasPrefix(source, "data:"):
		_, payload, ok := strings.Cut(source, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URI")
		}
		source = payload
	}
	data, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return nil, fmt.Errorf("decode base64 logo: %w", err)
	}
	return data, nil
}

func (l *LogoLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch logo: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
