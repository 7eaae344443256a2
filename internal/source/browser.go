package source

import (
	"context"
	"log"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the headless Chrome used by browser adapters.
type BrowserOptions struct {
	// ExecPath points at a Chrome/Chromium binary. Empty uses chromedp's lookup.
	ExecPath string
	Headed   bool

	UserAgent string

	// Stealth hides the most common automation fingerprints.
	Stealth bool
}

// withBrowser runs fn inside a fresh browser process that is torn down when
// fn returns, whatever the outcome.
func withBrowser(ctx context.Context, bo BrowserOptions, fn func(ctx context.Context) error) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if bo.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(bo.ExecPath))
	}
	if bo.Headed {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if bo.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(bo.UserAgent))
	}
	if bo.Stealth {
		opts = append(opts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		log.Printf("browser: "+format, args...)
	}))
	defer cancelTask()

	// Start the browser on the un-timed context so derived timeouts in fn
	// cannot close it mid-run.
	if err := chromedp.Run(taskCtx); err != nil {
		return err
	}
	return fn(taskCtx)
}
