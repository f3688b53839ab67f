// Package automation performs the UI-automation destination's "send": it
// drives the user's browser to click the native submit button on the x.com
// compose page. The outcome is inferred from the post-submit redirect, never
// confirmed via API, and the trigger is never retried.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const (
	triggerTimeout = 2 * time.Minute
	pollInterval   = 500 * time.Millisecond
)

// composeURLFragments identify a tab showing the compose page.
var composeURLFragments = []string{
	"/intent/post",
	"/intent/tweet",
	"/compose/post",
	"/compose/tweet",
}

// XTrigger implements domain.Trigger for X.
type XTrigger struct {
	browserURL string
	headless   bool
	logger     *slog.Logger
}

// NewXTrigger creates an XTrigger. browserURL is the DevTools websocket URL
// of the user's running browser; if empty, a dedicated instance is launched.
func NewXTrigger(browserURL string, headless bool, logger *slog.Logger) *XTrigger {
	return &XTrigger{browserURL: browserURL, headless: headless, logger: logger}
}

// Trigger clicks the native submit button on the compose page and waits for
// the redirect to /home that indicates the post went through. The redirect
// also ends the host page's editing session, which is why the delivery engine
// orders this call strictly after every API-based send has settled.
func (t *XTrigger) Trigger(ctx context.Context) (string, error) {
	allocCtx, cancelAlloc := t.allocator(ctx)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, triggerTimeout)
	defer cancelTimeout()

	tabCtx, cancelTab, err := t.composeTab(browserCtx)
	if err != nil {
		return "", err
	}
	defer cancelTab()

	if err := chromedp.Run(tabCtx,
		chromedp.WaitVisible(SubmitButton, chromedp.ByQuery),
		chromedp.Click(SubmitButton, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("click submit button: %w", err)
	}

	t.logger.Info("submit button clicked, waiting for redirect")
	return t.waitForHome(tabCtx)
}

func (t *XTrigger) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.browserURL != "" {
		return chromedp.NewRemoteAllocator(ctx, t.browserURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", t.headless),
		chromedp.Flag("disable-gpu", true),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

// composeTab attaches to the tab showing the compose page. When no such tab
// exists the current tab is used as-is (the launched-instance case, where the
// caller is expected to have navigated already).
func (t *XTrigger) composeTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	infos, err := chromedp.Targets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list browser targets: %w", err)
	}

	var composeID target.ID
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		for _, fragment := range composeURLFragments {
			if strings.Contains(info.URL, fragment) {
				composeID = info.TargetID
				break
			}
		}
	}

	if composeID == "" {
		tabCtx, cancel := context.WithCancel(ctx)
		return tabCtx, cancel, nil
	}

	tabCtx, cancel := chromedp.NewContext(ctx, chromedp.WithTargetID(composeID))
	return tabCtx, cancel, nil
}

// waitForHome polls the tab location until it lands on /home.
func (t *XTrigger) waitForHome(ctx context.Context) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for redirect: %w", ctx.Err())
		case <-ticker.C:
		}

		var location string
		if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
			// The tab may be torn down by the redirect itself; treat a dead
			// tab after a successful click as inferred success.
			t.logger.Debug("tab gone after submit, inferring success", "error", err)
			return "", nil
		}

		for _, prefix := range homeURLPrefixes {
			if strings.HasPrefix(location, prefix) {
				return location, nil
			}
		}
	}
}
