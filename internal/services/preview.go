package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/escpos"
)

var previewTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"logoDataURL": logoDataURL,
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { margin: 0; background: #fff; }
.paper { width: {{.Width}}ch; padding: 1ch 0; font: 14px/1.25 "DejaVu Sans Mono", monospace; }
pre { margin: 0; white-space: pre; }
img { display: block; margin: 0 auto 0.5em; image-rendering: pixelated; }
</style></head><body><div class="paper">
{{- with .Logo}}<img src="{{logoDataURL .}}">{{end -}}
<pre>{{range .Lines}}{{.}}
{{end}}</pre></div></body></html>`))

type previewData struct {
	Width int
	Logo  *escpos.Raster
	Lines []string
}

// RenderPreviewHTML lays a document out the way the printer would.
func RenderPreviewHTML(doc escpos.Document, layout escpos.Layout) (string, error) {
	var buf bytes.Buffer
	err := previewTemplate.Execute(&buf, previewData{Width: layout.PageWidth, Logo: doc.Logo, Lines: doc.Lines})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// rasterImage unpacks a 1-bit raster back into a two-colour image.
func rasterImage(r escpos.Raster) image.Image {
	img := image.NewPaletted(image.Rect(0, 0, r.WidthBytes*8, r.Height), color.Palette{color.White, color.Black})
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.WidthBytes*8; x++ {
			if r.Data[y*r.WidthBytes+x/8]&(1<<(7-uint(x%8))) != 0 {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	return img
}

func logoDataURL(r *escpos.Raster) template.URL {
	var buf bytes.Buffer
	if err := png.Encode(&buf, rasterImage(*r)); err != nil {
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}

// RenderPreview renders doc in headless Chrome and writes a PNG screenshot.
func RenderPreview(ctx context.Context, chromePath string, doc escpos.Document, layout escpos.Layout, outputPath string) error {
	html, err := RenderPreviewHTML(doc, layout)
	if err != nil {
		return err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pngBytes []byte
	err = chromedp.Run(cdpCtx,
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed generating image: %w", err)
	}

	if err := os.WriteFile(outputPath, pngBytes, 0644); err != nil {
		return fmt.Errorf("failed saving image: %w", err)
	}
	return nil
}

// Helper for encoding HTML into a data URL
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
