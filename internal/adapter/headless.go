package adapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/quenby/glimpse/pkg/capture"
)

// chromeCandidates are tried in order when locating a browser binary.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
	"headless-shell",
}

// headlessBackend shells out to a Chrome binary in headless screenshot mode.
// It is the fallback web adapter when no DevTools session can be driven; it
// cannot interact with the page, so events degrade to plain captures.
type headlessBackend struct {
	binary string
}

// NewHeadless returns the subprocess-based web capture adapter.
func NewHeadless(defaults capture.Options) *Adapter {
	return newAdapter(&headlessBackend{}, defaults)
}

func findChrome() string {
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (h *headlessBackend) canHandle(target string) bool {
	return Classify(target) == capture.KindWeb
}

func (h *headlessBackend) contentType() capture.Type { return capture.TypeScreenshot }

func (h *headlessBackend) startSession(context.Context, string, capture.Options) error {
	// Each capture is an independent subprocess run; there is no session
	// state to establish beyond locating the binary.
	if h.binary == "" {
		h.binary = findChrome()
	}
	if h.binary == "" {
		return fmt.Errorf("adapter: %s", errNoMechanism("no chrome binary found"))
	}
	return nil
}

func (h *headlessBackend) release() {}

func (h *headlessBackend) doCapture(ctx context.Context, target string, opts capture.Options) capture.Result {
	if h.binary == "" {
		h.binary = findChrome()
	}
	if h.binary == "" {
		return capture.Failure(capture.TypeScreenshot, errNoMechanism("no chrome binary found"))
	}

	url := normalizeURL(target)

	if opts.WaitBefore > 0 {
		time.Sleep(opts.WaitBefore)
	}

	path, perr := outputPath(opts, ".png")
	if perr != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(perr))
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.binary,
		"--headless=new",
		"--disable-gpu",
		"--no-sandbox",
		"--hide-scrollbars",
		fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height),
		"--screenshot="+path,
		url,
	)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return capture.Failure(capture.TypeScreenshot, errTimeout(opts.Timeout))
	}
	if err != nil {
		return capture.Failure(capture.TypeScreenshot, errInternal(fmt.Errorf("chrome screenshot: %w", err)))
	}
	if info, statErr := os.Stat(path); statErr != nil || info.Size() == 0 {
		return capture.Failure(capture.TypeScreenshot, errNotFound(url))
	}

	return capture.Result{
		Success:   true,
		Type:      capture.TypeScreenshot,
		Path:      path,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"url":              url,
			"duration_seconds": fmt.Sprintf("%.2f", elapsed.Seconds()),
		},
	}
}

func (h *headlessBackend) doEvent(ctx context.Context, target, event, _ string, opts capture.Options) capture.Result {
	// No page interaction without a DevTools session; record the requested
	// event on a plain capture instead.
	result := h.doCapture(ctx, target, opts)
	result.Event = event
	return result
}
