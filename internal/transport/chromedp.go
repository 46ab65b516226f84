package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeRenderer implements RenderTransport with a headless Chrome instance.
// Both the image and the PDF path need a browser binary; PDFAvailable is the
// probe the report generator consults before attempting the PDF path.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewChromeRenderer(execPath string, timeout time.Duration, logger *zap.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRenderer{
		execPath: execPath,
		timeout:  timeout,
		logger:   logger,
	}
}

func (r *ChromeRenderer) RenderImage(ctx context.Context, html string) ([]byte, error) {
	var buf []byte
	err := r.run(ctx, html, chromedp.FullScreenshot(&buf, 95))
	if err != nil {
		return nil, fmt.Errorf("failed to render image: %w", err)
	}
	return buf, nil
}

func (r *ChromeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	var buf []byte
	err := r.run(ctx, html, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf, nil
}

func (r *ChromeRenderer) PDFAvailable() bool {
	return r.browserPath() != ""
}

func (r *ChromeRenderer) run(ctx context.Context, html string, action chromedp.Action) error {
	browser := r.browserPath()
	if browser == "" {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browser),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))
	return chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		action,
	)
}

func (r *ChromeRenderer) browserPath() string {
	if r.execPath != "" {
		if _, err := os.Stat(r.execPath); err == nil {
			return r.execPath
		}
		r.logger.Warn("Configured browser path not found", zap.String("path", r.execPath))
		return ""
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
