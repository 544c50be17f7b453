// Package chromedpbrowser drives the listings site with a real Chrome
// instance through chromedp.
package chromedpbrowser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

const defaultNavigationTimeout = 45 * time.Second

// Config controls the browser session.
type Config struct {
	Headless          bool
	UserAgent         string
	ExecPath          string
	NavigationTimeout time.Duration
}

// Browser implements crawler.Browser on a single Chrome tab.
type Browser struct {
	cfg         Config
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

var errForeignElement = errors.New("element does not belong to this browser")

// New launches Chrome and opens one tab.
func New(cfg Config) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// An empty run starts the browser so launch failures surface here.
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &Browser{
		cfg:         cfg,
		tab:         tab,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// Navigate loads url and waits for the body to be ready.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, "navigate",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Find returns every node matching selector; none is not an error.
func (b *Browser) Find(ctx context.Context, selector string) ([]crawler.Element, error) {
	var nodes []*cdp.Node
	if err := b.run(ctx, "find", chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	out := make([]crawler.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{browser: b, node: n}
	}
	return out, nil
}

// Clear selects the element's content and deletes it.
func (b *Browser) Clear(ctx context.Context, el crawler.Element) error {
	ids, err := b.nodeIDs(el)
	if err != nil {
		return err
	}
	return b.run(ctx, "clear",
		chromedp.Focus(ids, chromedp.ByNodeID),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Delete),
	)
}

// Type sends text to the element as key strokes.
func (b *Browser) Type(ctx context.Context, el crawler.Element, text string) error {
	ids, err := b.nodeIDs(el)
	if err != nil {
		return err
	}
	return b.run(ctx, "type", chromedp.SendKeys(ids, text, chromedp.ByNodeID))
}

// PressEnter sends the Enter key to the element.
func (b *Browser) PressEnter(ctx context.Context, el crawler.Element) error {
	ids, err := b.nodeIDs(el)
	if err != nil {
		return err
	}
	return b.run(ctx, "enter", chromedp.SendKeys(ids, kb.Enter, chromedp.ByNodeID))
}

// Click clicks the element.
func (b *Browser) Click(ctx context.Context, el crawler.Element) error {
	ids, err := b.nodeIDs(el)
	if err != nil {
		return err
	}
	return b.run(ctx, "click", chromedp.Click(ids, chromedp.ByNodeID))
}

// CurrentHTML returns the rendered document.
func (b *Browser) CurrentHTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, "outer html", chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// CurrentURL returns the location of the tab.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := b.run(ctx, "location", chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.tab)
	b.tabCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// run executes actions on the tab, bounded by the navigation timeout and
// by ctx.
func (b *Browser) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.tab, navTimeout(b.cfg))
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp %s: %w", op, err)
	}
	return nil
}

func (b *Browser) nodeIDs(el crawler.Element) ([]cdp.NodeID, error) {
	e, ok := el.(*element)
	if !ok || e.browser != b {
		return nil, errForeignElement
	}
	return []cdp.NodeID{e.node.NodeID}, nil
}

type element struct {
	browser *Browser
	node    *cdp.Node
}

// Attribute reads the live attribute; a detached node reports ErrStaleElement.
func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var attrs []string
	err := e.browser.run(ctx, "attributes", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = dom.GetAttributes(e.node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		if isDetachedNode(err) {
			return "", fmt.Errorf("%w: %w", crawler.ErrStaleElement, err)
		}
		return "", err
	}
	value, _ := attributeValue(attrs, name)
	return value, nil
}

// isDetachedNode reports whether err is the CDP answer for a node id that no
// longer exists in the document.
func isDetachedNode(err error) bool {
	var cdpErr *cdproto.Error
	if !errors.As(err, &cdpErr) {
		return false
	}
	msg := strings.ToLower(cdpErr.Message)
	return strings.Contains(msg, "could not find node") || strings.Contains(msg, "no node with given id")
}

// attributeValue looks name up in the flat name/value list returned by CDP.
func attributeValue(attrs []string, name string) (string, bool) {
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true
		}
	}
	return "", false
}

func navTimeout(cfg Config) time.Duration {
	if cfg.NavigationTimeout > 0 {
		return cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}
