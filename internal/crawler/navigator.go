package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// NavigatorConfig describes the page flow of the listings site.
type NavigatorConfig struct {
	BaseURL             string
	SearchInputSelector string
	ResultLinkSelector  string
	NextPageSelector    string
	KeywordsParam       string
	PageParam           string
	// StaleRetries is how many extra collection passes are attempted when
	// result elements detach while being read.
	StaleRetries int
	// StaleTolerance is the number of stale elements a pass may contain and
	// still be accepted.
	StaleTolerance int
	// MinPartialRatio is the share of result elements the best pass must have
	// read when no pass met StaleTolerance. Below it the page is an error.
	MinPartialRatio float64
}

// DefaultMinPartialRatio applies when NavigatorConfig.MinPartialRatio is unset.
const DefaultMinPartialRatio = 0.5

// BrowserNavigator implements Navigator on top of a Browser.
type BrowserNavigator struct {
	browser Browser
	limiter SlotLimiter
	cfg     NavigatorConfig
	logger  *zap.Logger
	page    int
}

// NewBrowserNavigator builds a navigator driving browser.
func NewBrowserNavigator(browser Browser, limiter SlotLimiter, cfg NavigatorConfig, logger *zap.Logger) *BrowserNavigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StaleRetries < 0 {
		cfg.StaleRetries = 0
	}
	if cfg.MinPartialRatio <= 0 || cfg.MinPartialRatio > 1 {
		cfg.MinPartialRatio = DefaultMinPartialRatio
	}
	return &BrowserNavigator{
		browser: browser,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.Named("navigator"),
	}
}

// Page returns the number of the result page currently displayed.
func (n *BrowserNavigator) Page() int {
	return n.page
}

// SubmitSearch enters term into the keywords input and submits it.
func (n *BrowserNavigator) SubmitSearch(ctx context.Context, term string) error {
	inputs, err := n.browser.Find(ctx, n.cfg.SearchInputSelector)
	if err != nil || len(inputs) == 0 {
		// Not on a page with a search box yet.
		if err := n.browser.Navigate(ctx, n.cfg.BaseURL); err != nil {
			return fmt.Errorf("%w: open %s: %w", ErrAutomation, n.cfg.BaseURL, err)
		}
		if err := n.limiter.Settle(ctx); err != nil {
			return err
		}
		inputs, err = n.browser.Find(ctx, n.cfg.SearchInputSelector)
		if err != nil {
			return fmt.Errorf("%w: find search input: %w", ErrAutomation, err)
		}
		if len(inputs) == 0 {
			return fmt.Errorf("%w: search input %q not found", ErrAutomation, n.cfg.SearchInputSelector)
		}
	}

	input := inputs[0]
	if err := n.browser.Clear(ctx, input); err != nil {
		return fmt.Errorf("%w: clear search input: %w", ErrAutomation, err)
	}
	if err := n.browser.Type(ctx, input, term); err != nil {
		return fmt.Errorf("%w: type search term: %w", ErrAutomation, err)
	}
	if err := n.limiter.Settle(ctx); err != nil {
		return err
	}
	if err := n.browser.PressEnter(ctx, input); err != nil {
		return fmt.Errorf("%w: submit search: %w", ErrAutomation, err)
	}
	if err := n.limiter.Settle(ctx); err != nil {
		return err
	}
	n.page = 1
	n.logger.Debug("search submitted", zap.String("term", term))
	return nil
}

// JumpToPage opens the results page for term directly and reports whether
// it lists any results.
func (n *BrowserNavigator) JumpToPage(ctx context.Context, term string, page int) (bool, error) {
	target, err := SearchURL(n.cfg.BaseURL, n.cfg.KeywordsParam, n.cfg.PageParam, term, page)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrAutomation, err)
	}
	if err := n.browser.Navigate(ctx, target); err != nil {
		return false, fmt.Errorf("%w: open %s: %w", ErrAutomation, target, err)
	}
	if err := n.limiter.Settle(ctx); err != nil {
		return false, err
	}
	n.page = page
	return n.hasResults(ctx)
}

// CollectResultLinks returns the canonical, de-duplicated result links of
// the current page in encounter order. When every pass has more stale
// elements than tolerated, the largest partial result is returned if it read
// at least MinPartialRatio of the elements; otherwise ErrAutomation.
func (n *BrowserNavigator) CollectResultLinks(ctx context.Context) ([]string, error) {
	var best linkPass
	for pass := 0; pass <= n.cfg.StaleRetries; pass++ {
		result, err := n.readLinks(ctx)
		if err != nil {
			return nil, err
		}
		if result.stale <= n.cfg.StaleTolerance {
			return result.links, nil
		}
		n.logger.Debug("stale result elements",
			zap.Int("pass", pass+1),
			zap.Int("stale", result.stale),
			zap.Int("found", result.found),
			zap.Int("links", len(result.links)),
		)
		if pass == 0 || len(result.links) > len(best.links) {
			best = result
		}
	}

	read := best.found - best.stale
	if len(best.links) == 0 || float64(read) < n.cfg.MinPartialRatio*float64(best.found) {
		return nil, fmt.Errorf("%w: page %d: %d of %d result elements stale after %d passes",
			ErrAutomation, n.page, best.stale, best.found, n.cfg.StaleRetries+1)
	}
	n.logger.Warn("result links incomplete after retries",
		zap.Int("page", n.page),
		zap.Int("links", len(best.links)),
		zap.Int("stale", best.stale),
		zap.Int("found", best.found),
	)
	return best.links, nil
}

// AdvancePage moves to the next result page. It returns false when there is
// no next page or the next page lists nothing.
func (n *BrowserNavigator) AdvancePage(ctx context.Context) (bool, error) {
	controls, err := n.browser.Find(ctx, n.cfg.NextPageSelector)
	if err != nil {
		return false, fmt.Errorf("%w: find next control: %w", ErrAutomation, err)
	}
	if len(controls) == 0 {
		return false, nil
	}

	next := n.page + 1
	if err := n.browser.Click(ctx, controls[0]); err != nil {
		n.logger.Debug("next click failed, navigating", zap.Int("page", next), zap.Error(err))
		if err := n.navigateToPage(ctx, next); err != nil {
			return false, err
		}
	}
	if err := n.limiter.Settle(ctx); err != nil {
		return false, err
	}
	n.page = next
	return n.hasResults(ctx)
}

func (n *BrowserNavigator) navigateToPage(ctx context.Context, page int) error {
	current, err := n.browser.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: read current url: %w", ErrAutomation, err)
	}
	target, err := PageURL(current, n.cfg.PageParam, page)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAutomation, err)
	}
	if err := n.browser.Navigate(ctx, target); err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrAutomation, target, err)
	}
	return nil
}

func (n *BrowserNavigator) hasResults(ctx context.Context) (bool, error) {
	items, err := n.browser.Find(ctx, n.cfg.ResultLinkSelector)
	if err != nil {
		return false, fmt.Errorf("%w: find results: %w", ErrAutomation, err)
	}
	return len(items) > 0, nil
}

// linkPass is the outcome of reading every result element once.
type linkPass struct {
	links []string
	stale int
	found int
}

func (n *BrowserNavigator) readLinks(ctx context.Context) (linkPass, error) {
	elements, err := n.browser.Find(ctx, n.cfg.ResultLinkSelector)
	if err != nil {
		return linkPass{}, fmt.Errorf("%w: find results: %w", ErrAutomation, err)
	}
	base, err := n.browser.CurrentURL(ctx)
	if err != nil {
		return linkPass{}, fmt.Errorf("%w: read current url: %w", ErrAutomation, err)
	}

	seen := make(map[string]struct{}, len(elements))
	links := make([]string, 0, len(elements))
	stale := 0
	for _, el := range elements {
		href, err := el.Attribute(ctx, "href")
		if errors.Is(err, ErrStaleElement) {
			stale++
			continue
		}
		if err != nil {
			return linkPass{}, fmt.Errorf("%w: read href: %w", ErrAutomation, err)
		}
		link, ok := resolveLink(base, href)
		if !ok {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return linkPass{links: links, stale: stale, found: len(elements)}, nil
}

func resolveLink(base, href string) (string, bool) {
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if b, err := url.Parse(base); err == nil && base != "" {
		ref = b.ResolveReference(ref)
	}
	link, err := CanonicalURL(ref.String())
	if err != nil {
		return "", false
	}
	return link, true
}
