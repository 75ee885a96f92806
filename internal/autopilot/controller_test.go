package autopilot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/cartbridge/internal/retailer"
)

// fakeDriver simulates a page whose controls may appear after a number of
// scans, plus dead-page text and navigation recording.
type fakeDriver struct {
	mu          sync.Mutex
	text        string
	clickables  []Clickable
	appearAfter int // scans before clickables become visible
	scans       int
	clicks      []int
	navigations []string
}

func (f *fakeDriver) VisibleText(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeDriver) Clickables(context.Context) ([]Clickable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.scans <= f.appearAfter {
		return nil, nil
	}
	return f.clickables, nil
}

func (f *fakeDriver) Click(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, id)
	return nil
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeDriver) clicked() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.clicks...)
}

func (f *fakeDriver) navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigations...)
}

func (f *fakeDriver) setClickables(cs []Clickable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clickables = cs
	f.scans = 0
	f.appearAfter = 0
}

func fastController(t *testing.T, target retailer.Target, recipeName string, d PageDriver, opts ...ControllerOption) *Controller {
	t.Helper()
	opts = append([]ControllerOption{WithTiming(2*time.Millisecond, 5*time.Millisecond, 12)}, opts...)
	c := NewController(target, recipeName, d, opts...)
	t.Cleanup(c.Teardown)
	return c
}

const recipeURL = "https://www.woolworths.com.au/shop/recipes/pad-thai"

func TestShopThenAddSequence(t *testing.T) {
	driver := &fakeDriver{
		text: "Pad Thai recipe",
		clickables: []Clickable{
			{ID: 1, Text: "Save to list"},
			{ID: 2, Text: "Shop Recipe"},
			{ID: 3, Text: "Add to cart"},
		},
	}
	c := fastController(t, retailer.Woolworths, "pad thai", driver)

	c.OnPageLoaded(recipeURL)

	require.Eventually(t, func() bool {
		return c.State() == StateAddSuccess
	}, 2*time.Second, 5*time.Millisecond)

	// Shop control first (first phrase match in DOM order), then add.
	assert.Equal(t, []int{2, 3}, driver.clicked())
}

func TestShopControlAppearsLate(t *testing.T) {
	driver := &fakeDriver{
		text:        "Pad Thai recipe",
		appearAfter: 4,
		clickables: []Clickable{
			{ID: 7, Text: "Shop recipe"},
			{ID: 8, Text: "Add all to cart"},
		},
	}
	c := fastController(t, retailer.Woolworths, "pad thai", driver)

	c.OnPageLoaded(recipeURL)

	require.Eventually(t, func() bool {
		return c.State() == StateAddSuccess
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, driver.scans, 5)
}

func TestShopFailAfterAttemptCeiling(t *testing.T) {
	driver := &fakeDriver{
		text:       "Pad Thai recipe",
		clickables: []Clickable{{ID: 1, Text: "Unrelated button"}},
	}
	c := fastController(t, retailer.Woolworths, "pad thai", driver, WithTiming(1*time.Millisecond, 2*time.Millisecond, 3))

	c.OnPageLoaded(recipeURL)

	require.Eventually(t, func() bool {
		return c.State() == StateShopFail
	}, 2*time.Second, 2*time.Millisecond)
	assert.Empty(t, driver.clicked())
	assert.Equal(t, statusShopFail, c.StatusMessage())
}

func TestRepeatedLoadsStaySingleFirePerLoad(t *testing.T) {
	driver := &fakeDriver{
		text:       "Pad Thai recipe",
		clickables: []Clickable{{ID: 2, Text: "Shop recipe"}, {ID: 3, Text: "Add to cart"}},
	}
	c := fastController(t, retailer.Woolworths, "pad thai", driver)

	c.OnPageLoaded(recipeURL)
	require.Eventually(t, func() bool { return c.State() == StateAddSuccess }, 2*time.Second, 5*time.Millisecond)

	// A fresh load runs the sequence again without panicking; the add step
	// is still scheduled only once within that load.
	driver.setClickables([]Clickable{{ID: 2, Text: "Shop recipe"}, {ID: 3, Text: "Add to cart"}})
	c.OnPageLoaded(recipeURL)
	require.Eventually(t, func() bool { return c.State() == StateAddSuccess }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []int{2, 3, 2, 3}, driver.clicked())
}

func TestDeadPageRedirectsOnce(t *testing.T) {
	driver := &fakeDriver{text: "Oops — Page Not Found"}
	c := fastController(t, retailer.Woolworths, "pad thai", driver)

	c.OnPageLoaded(recipeURL)
	require.Eventually(t, func() bool {
		return c.State() == StateFallbackRedirected
	}, 2*time.Second, 5*time.Millisecond)

	navs := driver.navigated()
	require.Len(t, navs, 1)
	assert.Equal(t, retailer.Woolworths.SearchURL("pad thai"), navs[0])

	// The probe firing again after the redirect must not redirect twice.
	c.OnPageLoaded(navs[0])
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, driver.navigated(), 1)
}

func TestNonWoolworthsGetsManualModeOnly(t *testing.T) {
	driver := &fakeDriver{
		text:       "Laksa recipe",
		clickables: []Clickable{{ID: 1, Text: "Add to cart"}},
	}
	c := fastController(t, retailer.Coles, "laksa", driver)

	c.OnPageLoaded("https://www.coles.com.au/recipes-inspiration/dinner/laksa")

	require.Eventually(t, func() bool {
		return c.StatusMessage() == statusManualMode
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, driver.clicked())
}

func TestNonRecipePageStaysIdle(t *testing.T) {
	driver := &fakeDriver{
		text:       "Product page",
		clickables: []Clickable{{ID: 1, Text: "Add to cart"}},
	}
	c := fastController(t, retailer.Woolworths, "pad thai", driver)

	c.OnPageLoaded("https://www.woolworths.com.au/shop/productdetails/42")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, driver.clicked())
}

func TestTeardownStopsPolling(t *testing.T) {
	driver := &fakeDriver{
		text:        "Pad Thai recipe",
		appearAfter: 1000,
	}
	c := NewController(retailer.Woolworths, "pad thai", driver,
		WithTiming(1*time.Millisecond, 2*time.Millisecond, 1000))

	c.OnPageLoaded(recipeURL)
	time.Sleep(10 * time.Millisecond)
	c.Teardown()

	driver.mu.Lock()
	scansAt := driver.scans
	driver.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	driver.mu.Lock()
	scansAfter := driver.scans
	driver.mu.Unlock()

	// One in-flight scan may land after teardown; polling must not continue.
	assert.LessOrEqual(t, scansAfter-scansAt, 1)
}

func TestAllowNavigation(t *testing.T) {
	c := NewController(retailer.Woolworths, "x", &fakeDriver{})
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.woolworths.com.au/shop/recipes/x", true},
		{"http://woolworths.com.au/", true},
		{"https://shop.woolworths.com.au/cart", true},
		{"https://www.coles.com.au/", false},
		{"ftp://www.woolworths.com.au/", false},
		{"javascript:alert(1)", false},
		{"mailto:x@woolworths.com.au", false},
		{"https://woolworths.com.au.evil.net/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.AllowNavigation(tt.url), "url %s", tt.url)
	}
}
