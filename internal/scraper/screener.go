// Package scraper drives a browser session against the Nasdaq screener and
// saves its CSV export. The remote site is treated as an opaque collaborator:
// any failure here is fatal to the acquisition run.
package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	cookieAcceptSelector = "#onetrust-accept-btn-handler"
	downloadSelector     = "button.jupiter22-c-table__download-csv"
	exportFilename       = "nasdaq_screener.csv"
)

type Screener struct {
	URL       string
	OutputDir string
	Headless  bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Download fetches the screener export and returns the path it was saved to.
func (s *Screener) Download() (string, error) {
	if err := s.resetOutputDir(); err != nil {
		return "", err
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.Headless),
	})
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}

	s.Logger.Info("loading screener page", zap.String("url", s.URL))
	if _, err := page.Goto(s.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("load screener page: %w", err)
	}

	s.acceptCookieBanner(page)

	button := page.Locator(downloadSelector)
	if err := button.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("wait for download button: %w", err)
	}

	download, err := page.ExpectDownload(func() error {
		return button.Click()
	})
	if err != nil {
		return "", fmt.Errorf("download export: %w", err)
	}

	outPath := filepath.Join(s.OutputDir, exportFilename)
	if err := download.SaveAs(outPath); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	s.Logger.Info("screener export saved", zap.String("path", outPath))
	return outPath, nil
}

func (s *Screener) acceptCookieBanner(page playwright.Page) {
	banner := page.Locator(cookieAcceptSelector)
	visible, err := banner.IsVisible()
	if err != nil || !visible {
		return
	}
	s.Logger.Info("accepting cookie banner")
	if err := banner.Click(); err != nil {
		s.Logger.Warn("cookie banner click failed", zap.Error(err))
	}
}

// resetOutputDir clears previous exports so a stale file can never be
// mistaken for this run's output.
func (s *Screener) resetOutputDir() error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	entries, err := os.ReadDir(s.OutputDir)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.OutputDir, entry.Name())); err != nil {
			return fmt.Errorf("clean output dir: %w", err)
		}
	}
	return nil
}
