//go:build browser

package web

import (
	"net/http/httptest"
	"testing"

	"github.com/playwright-community/playwright-go"
)

// newBrowserPage starts the kiosk on a local server and opens it in headless Chromium.
func newBrowserPage(t *testing.T, env testEnv) playwright.Page {
	t.Helper()
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
	})

	page, err := browser.NewPage()
	if err != nil {
		t.Fatalf("failed to open page: %v", err)
	}
	if _, err := page.Goto(srv.URL + "/"); err != nil {
		t.Fatalf("failed to load kiosk: %v", err)
	}
	return page
}

func waitForText(t *testing.T, page playwright.Page, selector, want string) {
	t.Helper()
	err := playwright.NewPlaywrightAssertions(5000).Locator(page.Locator(selector)).ToHaveText(want)
	if err != nil {
		t.Fatalf("%s never showed %q: %v", selector, want, err)
	}
}

// TestBrowser_SelectAndUndo tests picking a clip from the gallery and taking it back.
func TestBrowser_SelectAndUndo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := newTestEnv(t, "")
	page := newBrowserPage(t, env)

	waitForText(t, page, "#counter", "0")
	if err := page.Locator(`#gallery button[data-index="1"]`).Click(); err != nil {
		t.Fatalf("failed to click clip: %v", err)
	}
	waitForText(t, page, "#counter", "1")

	if err := page.Locator("#parental summary").Click(); err != nil {
		t.Fatalf("failed to open parental panel: %v", err)
	}
	if err := page.Locator("#undo").Click(); err != nil {
		t.Fatalf("failed to click undo: %v", err)
	}
	waitForText(t, page, "#counter", "0")
}

// TestBrowser_PINGate tests that the controls stay hidden until the PIN is entered.
func TestBrowser_PINGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	env := newTestEnv(t, "2468")
	page := newBrowserPage(t, env)

	if err := page.Locator("#parental summary").Click(); err != nil {
		t.Fatalf("failed to open parental panel: %v", err)
	}
	if visible, _ := page.Locator("#controls").IsVisible(); visible {
		t.Fatal("controls visible before unlock")
	}
	if err := page.Locator("#pin").Fill("2468"); err != nil {
		t.Fatalf("failed to fill PIN: %v", err)
	}
	if err := page.Locator("#unlock").Click(); err != nil {
		t.Fatalf("failed to click unlock: %v", err)
	}
	err := page.Locator("#controls").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	if err != nil {
		t.Fatalf("controls not shown after unlock: %v", err)
	}
}
