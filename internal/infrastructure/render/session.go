// Package render drives a shared headless Chrome instance over the
// DevTools protocol to turn report pages into PDFs.
//
// One browser process serves the whole service; each render opens a
// fresh tab and closes it on every exit path, success or failure. A
// leaked tab holds its page's full memory for the life of the process,
// which is how headless PDF services die in production.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	reportapp "github.com/inzighted/report-service/internal/application/report"
	"github.com/inzighted/report-service/internal/infrastructure/config"
)

var _ reportapp.Renderer = (*Session)(nil)

const (
	// A4 paper in inches, the unit PrintToPDF speaks.
	paperWidthInches  = 8.27
	paperHeightInches = 11.69

	// 20 CSS pixels at the CSS reference 96dpi.
	marginInches = 20.0 / 96.0

	viewportWidth  = 1200
	viewportHeight = 800

	// Readiness flag polling. The bound is independent of the
	// navigation timeout: navigation covers fetching the app shell,
	// readiness covers the app fetching and charting its data.
	defaultReadyPollInterval = 500 * time.Millisecond
	defaultReadyTimeout      = 120 * time.Second

	debugCaptureTimeout = 10 * time.Second
)

// readyExpr is the flag the report frontend sets once all charts are
// painted and the page is safe to print.
const readyExpr = `window.__PDF_READY__ === true`

// browserTab is one open DevTools tab, alive for a single render. Every
// open tab must be closed exactly once per render, whatever the
// outcome; close is idempotent.
type browserTab interface {
	navigate(timeout time.Duration, reportURL, token string) error
	ready() (bool, error)
	printPDF() ([]byte, error)
	dumpDebug(tag string)
	close()
}

// Session owns the shared Chrome process. Safe for concurrent use;
// each RenderPDF call gets its own tab.
type Session struct {
	cfg    config.PDFConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	startOnce     sync.Once
	startErr      error
	browserCtx    context.Context
	browserCancel context.CancelFunc

	openTab      func(tag string) (browserTab, error)
	readyTimeout time.Duration
	readyPoll    time.Duration
}

// NewSession prepares the Chrome allocator. The browser process itself
// launches lazily on the first render, so a service with a broken
// Chrome install still starts and serves /health.
func NewSession(cfg config.PDFConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		cfg:          cfg,
		logger:       logger,
		readyTimeout: defaultReadyTimeout,
		readyPoll:    defaultReadyPollInterval,
	}
	s.openTab = s.newChromeTab

	if cfg.RemoteURL != "" {
		s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return s
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Docker /dev/shm is tiny
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if cfg.ChromeExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeExecPath))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return s
}

// start launches the browser process once.
func (s *Session) start() error {
	s.startOnce.Do(func() {
		ctx, cancel := chromedp.NewContext(s.allocCtx,
			chromedp.WithLogf(func(format string, args ...interface{}) {
				s.logger.Debug(fmt.Sprintf(format, args...))
			}),
		)
		if err := chromedp.Run(ctx); err != nil {
			cancel()
			s.startErr = NewRenderError(ErrCodeBrowserUnavailable, "failed to launch browser", err)
			return
		}
		s.browserCtx = ctx
		s.browserCancel = cancel
		s.logger.Info("headless browser launched")
	})
	return s.startErr
}

// RenderPDF navigates a fresh tab to the report page, waits for the
// page's readiness flag, and prints it to an A4 PDF. The token is
// injected into the page before any of its scripts run; tag names the
// debug artifacts dumped if navigation or readiness times out.
func (s *Session) RenderPDF(ctx context.Context, reportURL, token, tag string) ([]byte, error) {
	started := time.Now()

	tab, err := s.openTab(tag)
	if err != nil {
		return nil, err
	}
	defer tab.close()

	// Tie the tab to the request: an abandoned HTTP request must not
	// leave Chrome rendering for nobody.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			tab.close()
		case <-done:
		}
	}()

	if err := tab.navigate(s.cfg.NavigationTimeout, reportURL, token); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			tab.dumpDebug(tag)
			return nil, NewRenderError(ErrCodeNavigationFailed,
				fmt.Sprintf("navigation timed out after %v", s.cfg.NavigationTimeout), err)
		}
		return nil, NewRenderError(ErrCodeNavigationFailed, "failed to load report page", err)
	}

	if err := s.awaitReady(ctx, tab); err != nil {
		tab.dumpDebug(tag)
		return nil, err
	}

	pdf, err := tab.printPDF()
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to print page to PDF", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	s.logger.Info("report rendered",
		zap.String("tag", tag),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(started)))
	return pdf, nil
}

// awaitReady polls the tab's readiness flag until it flips or the
// bound expires.
func (s *Session) awaitReady(ctx context.Context, tab browserTab) error {
	deadline := time.Now().Add(s.readyTimeout)
	ticker := time.NewTicker(s.readyPoll)
	defer ticker.Stop()

	for {
		ready, err := tab.ready()
		if err != nil {
			return NewRenderError(ErrCodeRenderFailed, "readiness probe failed", err)
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return NewRenderError(ErrCodeReadyTimeout,
				fmt.Sprintf("page never signaled readiness within %v", s.readyTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return NewRenderError(ErrCodeRenderFailed, "render cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// chromeTab is the chromedp-backed tab.
type chromeTab struct {
	s         *Session
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// newChromeTab launches the browser if needed and opens a tab on it.
func (s *Session) newChromeTab(tag string) (browserTab, error) {
	if err := s.start(); err != nil {
		return nil, err
	}
	ctx, cancel := chromedp.NewContext(s.browserCtx)
	s.listenPageEvents(ctx, tag)
	return &chromeTab{s: s, ctx: ctx, cancel: cancel}, nil
}

func (t *chromeTab) navigate(timeout time.Duration, reportURL, token string) error {
	navCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		t.s.injectToken(reportURL, token),
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		chromedp.Navigate(reportURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && navCtx.Err() == context.DeadlineExceeded {
		return context.DeadlineExceeded
	}
	return err
}

func (t *chromeTab) ready() (bool, error) {
	var ready bool
	err := chromedp.Run(t.ctx, chromedp.Evaluate(readyExpr, &ready))
	return ready, err
}

func (t *chromeTab) printPDF() ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(t.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthInches).
			WithPaperHeight(paperHeightInches).
			WithMarginTop(marginInches).
			WithMarginRight(marginInches).
			WithMarginBottom(marginInches).
			WithMarginLeft(marginInches).
			Do(ctx)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	}))
	return pdf, err
}

func (t *chromeTab) dumpDebug(tag string) {
	t.s.dumpDebugArtifacts(t.ctx, tag)
}

func (t *chromeTab) close() {
	t.closeOnce.Do(t.cancel)
}

// injectToken makes the caller's token visible to the report frontend
// before any of its scripts run, both where SPAs usually look
// (localStorage) and as a cookie for server-rendered requests.
func (s *Session) injectToken(reportURL, token string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if token == "" {
			return nil
		}

		if _, err := page.AddScriptToEvaluateOnNewDocument(tokenScript(token)).Do(ctx); err != nil {
			return err
		}

		host := cookieDomain(reportURL)
		if host == "" {
			return nil
		}
		expires := cdp.TimeSinceEpoch(time.Now().Add(24 * time.Hour))
		return network.SetCookie("token", token).
			WithDomain(host).
			WithPath("/").
			WithHTTPOnly(false).
			WithSameSite(network.CookieSameSiteLax).
			WithExpires(&expires).
			Do(ctx)
	})
}

// listenPageEvents surfaces in-page diagnostics in the service log.
// When a render hangs, the page's own console is usually the answer.
func (s *Session) listenPageEvents(ctx context.Context, tag string) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, 0, len(e.Args))
			for _, a := range e.Args {
				if a.Value != nil {
					args = append(args, string(a.Value))
				}
			}
			s.logger.Debug("page console",
				zap.String("tag", tag),
				zap.String("type", string(e.Type)),
				zap.Strings("args", args))
		case *runtime.EventExceptionThrown:
			s.logger.Warn("page exception",
				zap.String("tag", tag),
				zap.String("detail", e.ExceptionDetails.Error()))
		case *network.EventLoadingFailed:
			s.logger.Debug("page resource failed",
				zap.String("tag", tag),
				zap.String("error", e.ErrorText))
		}
	})
}

// dumpDebugArtifacts writes a screenshot and the page HTML to the temp
// dir so a hung render can be diagnosed after the fact. Best-effort.
func (s *Session) dumpDebugArtifacts(tabCtx context.Context, tag string) {
	ctx, cancel := context.WithTimeout(tabCtx, debugCaptureTimeout)
	defer cancel()

	stamp := time.Now().Format("20060102T150405")
	base := filepath.Join(s.cfg.TempDir, fmt.Sprintf("render_debug_%s_%s", sanitizeTag(tag), stamp))

	var shot []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&shot, 80)); err == nil {
		if werr := os.WriteFile(base+".png", shot, 0644); werr == nil {
			s.logger.Warn("render debug screenshot written", zap.String("path", base+".png"))
		}
	} else {
		s.logger.Warn("failed to capture debug screenshot", zap.Error(err))
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err == nil {
		if werr := os.WriteFile(base+".html", []byte(html), 0644); werr == nil {
			s.logger.Warn("render debug page dump written", zap.String("path", base+".html"))
		}
	}
}

// Close shuts down the browser process and the allocator.
func (s *Session) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

// tokenScript is the document-start script that plants the token where
// the report frontend reads it.
func tokenScript(token string) string {
	return fmt.Sprintf(`window.localStorage.setItem("token", %q);`, token)
}

// cookieDomain extracts the host (without port) a token cookie should
// be scoped to.
func cookieDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sanitizeTag(tag string) string {
	if tag == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, tag)
}
