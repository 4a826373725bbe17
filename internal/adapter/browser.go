package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/quenby/glimpse/pkg/capture"
)

// browserBackend drives a headless Chromium instance through the DevTools
// protocol. A session keeps one page alive across captures; outside a
// session each capture spins the browser up and tears it down.
type browserBackend struct {
	cleanup cleanupStack

	browser *rod.Browser
	page    *rod.Page
	url     string
	running bool
}

// NewBrowser returns the DevTools-protocol web capture adapter.
func NewBrowser(defaults capture.Options) *Adapter {
	return newAdapter(&browserBackend{}, defaults)
}

func (b *browserBackend) canHandle(target string) bool {
	return Classify(target) == capture.KindWeb
}

func (b *browserBackend) contentType() capture.Type { return capture.TypeScreenshot }

func (b *browserBackend) startSession(ctx context.Context, target string, opts capture.Options) error {
	if !browserEngineAvailable() {
		return fmt.Errorf("adapter: %s", errNoMechanism("no chromium binary found"))
	}

	url := normalizeURL(target)

	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("adapter: launch browser: %w", err)
	}
	b.cleanup.push(l.Cleanup)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.cleanup.run()
		return fmt.Errorf("adapter: connect browser: %w", err)
	}
	b.cleanup.push(func() { _ = browser.Close() })

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.cleanup.run()
		return fmt.Errorf("adapter: open page: %w", err)
	}

	opts = opts.Normalize()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.cleanup.run()
		return fmt.Errorf("adapter: set viewport: %w", err)
	}

	if err := page.Context(ctx).Navigate(url); err != nil {
		b.cleanup.run()
		return fmt.Errorf("adapter: %s", errNotFound(url))
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		b.cleanup.run()
		return fmt.Errorf("adapter: wait for load: %w", err)
	}

	b.browser = browser
	b.page = page
	b.url = url
	b.running = true
	return nil
}

func (b *browserBackend) release() {
	b.cleanup.run()
	b.browser = nil
	b.page = nil
	b.running = false
}

func (b *browserBackend) doCapture(ctx context.Context, target string, opts capture.Options) capture.Result {
	oneShot := !b.running
	if oneShot {
		if err := b.startSession(ctx, target, opts); err != nil {
			return capture.Failure(wantType(opts), err.Error())
		}
		defer b.release()
	}

	if opts.WaitBefore > 0 {
		time.Sleep(opts.WaitBefore)
	}

	return b.snapshot(ctx, opts, "")
}

func (b *browserBackend) doEvent(ctx context.Context, target, event, selector string, opts capture.Options) capture.Result {
	if !b.running {
		if err := b.startSession(ctx, target, opts); err != nil {
			return capture.Failure(wantType(opts), err.Error())
		}
	}

	label := event
	if err := b.applyEvent(ctx, event, selector, &label); err != nil {
		return capture.Failure(wantType(opts), err.Error())
	}

	time.Sleep(settleDelay)

	result := b.snapshot(ctx, opts, label)
	return result
}

func (b *browserBackend) applyEvent(ctx context.Context, event, selector string, label *string) error {
	page := b.page.Context(ctx)

	switch event {
	case "click":
		el, err := page.Element(selector)
		if err != nil {
			return fmt.Errorf("adapter: %s", errNotFound("element "+selector))
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("adapter: %s", errInternal(err))
		}
		*label = "click:" + selector
	case "navigate":
		if err := page.Navigate(normalizeURL(selector)); err != nil {
			return fmt.Errorf("adapter: %s", errNotFound(selector))
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("adapter: %s", errInternal(err))
		}
		*label = "navigate:" + selector
	case "input":
		// selector carries "css=value".
		sel, value, ok := strings.Cut(selector, "=")
		if !ok {
			return fmt.Errorf("adapter: %s", errInternal(fmt.Errorf("input event needs selector=value, got %q", selector)))
		}
		el, err := page.Element(sel)
		if err != nil {
			return fmt.Errorf("adapter: %s", errNotFound("element "+sel))
		}
		if err := el.Input(value); err != nil {
			return fmt.Errorf("adapter: %s", errInternal(err))
		}
		*label = "input:" + sel
	case "hover":
		el, err := page.Element(selector)
		if err != nil {
			return fmt.Errorf("adapter: %s", errNotFound("element "+selector))
		}
		if err := el.Hover(); err != nil {
			return fmt.Errorf("adapter: %s", errInternal(err))
		}
		*label = "hover:" + selector
	case "scroll":
		el, err := page.Element(selector)
		if err != nil {
			return fmt.Errorf("adapter: %s", errNotFound("element "+selector))
		}
		if err := el.ScrollIntoView(); err != nil {
			return fmt.Errorf("adapter: %s", errInternal(err))
		}
		*label = "scroll:" + selector
	case "wait":
		seconds := 1.0
		if selector != "" {
			fmt.Sscanf(selector, "%g", &seconds)
		}
		time.Sleep(time.Duration(seconds * float64(time.Second)))
		*label = fmt.Sprintf("wait:%gs", seconds)
	}
	return nil
}

// snapshot produces either a screenshot or a DOM serialization of the
// current page, depending on the requested content type.
func (b *browserBackend) snapshot(ctx context.Context, opts capture.Options, event string) capture.Result {
	page := b.page.Context(ctx)

	if wantType(opts) == capture.TypeDOM {
		html, err := page.HTML()
		if err != nil {
			return capture.Failure(capture.TypeDOM, errInternal(err))
		}
		path, perr := outputPath(opts, ".html")
		if perr != nil {
			return capture.Failure(capture.TypeDOM, errInternal(perr))
		}
		if werr := os.WriteFile(path, []byte(html), 0o644); werr != nil {
			return capture.Failure(capture.TypeDOM, errInternal(werr))
		}
		return capture.Result{
			Success:   true,
			Type:      capture.TypeDOM,
			Path:      path,
			Text:      html,
			Timestamp: time.Now(),
			Event:     event,
			Metadata:  map[string]string{"url": b.url},
		}
	}

	data, err := page.Screenshot(opts.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(err))
	}
	path, perr := outputPath(opts, ".png")
	if perr != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(perr))
	}
	if werr := os.WriteFile(path, data, 0o644); werr != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(werr))
	}

	return capture.Result{
		Success:   true,
		Type:      capture.TypeScreenshot,
		Path:      path,
		Timestamp: time.Now(),
		Event:     event,
		Metadata:  map[string]string{"url": b.url},
	}
}

// wantType resolves the requested content type for a web capture.
func wantType(opts capture.Options) capture.Type {
	if opts.Want == capture.TypeDOM {
		return capture.TypeDOM
	}
	return capture.TypeScreenshot
}

func normalizeURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "http://" + target
}
