package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

const defaultNavTimeout = 30 * time.Second

// clickableScript collects buttons, ARIA role="button" elements and anchors
// in DOM traversal order, tagging each with a stable per-scan index.
const clickableScript = `() => {
	const out = [];
	const nodes = document.querySelectorAll("button, [role='button'], a");
	let i = 0;
	for (const n of nodes) {
		const text = (n.innerText || n.textContent || "").trim();
		n.setAttribute("data-autopilot-id", String(i));
		out.push({ id: i, text: text.slice(0, 200) });
		i++;
	}
	return out;
}`

// Launcher owns the playwright lifecycle for the automation host.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewLauncher(headless bool) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &Launcher{pw: pw, browser: browser}, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

// NewPage opens a page whose outbound navigation is filtered through the
// controller's allow list before anything loads.
func (l *Launcher) NewPage(allow func(url string) bool) (*PlaywrightDriver, error) {
	browserCtx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))

	if allow != nil {
		if err := page.Route("**/*", func(route playwright.Route) {
			req := route.Request()
			if req.IsNavigationRequest() && !allow(req.URL()) {
				_ = route.Abort("blockedbyclient")
				return
			}
			_ = route.Continue()
		}); err != nil {
			_ = browserCtx.Close()
			return nil, fmt.Errorf("install route filter: %w", err)
		}
	}

	return &PlaywrightDriver{context: browserCtx, page: page}, nil
}

// PlaywrightDriver adapts a live playwright page to the PageDriver surface.
type PlaywrightDriver struct {
	context playwright.BrowserContext
	page    playwright.Page
}

// Page exposes the underlying page so the host can subscribe to load events.
func (d *PlaywrightDriver) Page() playwright.Page { return d.page }

func (d *PlaywrightDriver) Close() error {
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.context != nil {
		return d.context.Close()
	}
	return nil
}

func (d *PlaywrightDriver) VisibleText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := d.page.InnerText("body")
	if err != nil {
		return "", wrap(err)
	}
	return text, nil
}

func (d *PlaywrightDriver) Clickables(ctx context.Context) ([]Clickable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := d.page.Evaluate(clickableScript)
	if err != nil {
		return nil, wrap(err)
	}
	arr, ok := val.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]Clickable, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(float64)
		text, _ := m["text"].(string)
		out = append(out, Clickable{ID: int(id), Text: text})
	}
	return out, nil
}

func (d *PlaywrightDriver) Click(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	selector := fmt.Sprintf("[data-autopilot-id='%d']", id)
	loc := d.page.Locator(selector).First()
	if err := loc.ScrollIntoViewIfNeeded(); err != nil {
		// Try the click anyway; the element may already be in view.
	}
	return wrap(loc.Click())
}

func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(defaultNavTimeout.Milliseconds())),
	})
	return wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
