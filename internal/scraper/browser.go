package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RenderPage loads a URL in headless Chrome and returns the fully
// rendered HTML. The plain HTTP scraper is all the normal path needs;
// this exists for diagnosing parser failures when the page starts
// assembling its content with scripts.
func RenderPage(ctx context.Context, url string, timeout time.Duration) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var pageHTML string
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second), // let late-loading labels settle
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}

	return pageHTML, nil
}
