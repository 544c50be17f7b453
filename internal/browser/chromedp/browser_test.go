package chromedpbrowser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
)

func TestNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	if got := navTimeout(Config{}); got != defaultNavigationTimeout {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	if got := navTimeout(Config{NavigationTimeout: time.Second}); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestAttributeValue(t *testing.T) {
	t.Parallel()

	attrs := []string{"class", "job-link", "href", "/job/123", "data-automation"}
	if got, ok := attributeValue(attrs, "href"); !ok || got != "/job/123" {
		t.Fatalf("expected href, got %q (%v)", got, ok)
	}
	if _, ok := attributeValue(attrs, "data-automation"); ok {
		t.Fatal("expected dangling name to be ignored")
	}
	if _, ok := attributeValue(nil, "href"); ok {
		t.Fatal("expected missing attribute")
	}
}

type otherElement struct{}

func (otherElement) Attribute(context.Context, string) (string, error) { return "", nil }

func TestNodeIDsRejectsForeignElements(t *testing.T) {
	t.Parallel()

	b := &Browser{}
	if _, err := b.nodeIDs(otherElement{}); !errors.Is(err, errForeignElement) {
		t.Fatalf("expected foreign element error, got %v", err)
	}
	other := &Browser{}
	if _, err := b.nodeIDs(&element{browser: other, node: &cdp.Node{NodeID: 4}}); !errors.Is(err, errForeignElement) {
		t.Fatalf("expected foreign element error, got %v", err)
	}
	ids, err := b.nodeIDs(&element{browser: b, node: &cdp.Node{NodeID: 7}})
	if err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("unexpected ids %v err %v", ids, err)
	}
}

func TestIsDetachedNode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "could not find node", err: &cdproto.Error{Code: -32000, Message: "Could not find node with given id"}, want: true},
		{name: "wrapped no node", err: fmt.Errorf("chromedp attributes: %w", &cdproto.Error{Code: -32000, Message: "No node with given id found"}), want: true},
		{name: "other cdp error", err: &cdproto.Error{Code: -32601, Message: "'DOM.getAttributes' wasn't found"}, want: false},
		{name: "timeout", err: fmt.Errorf("chromedp attributes: %w", context.DeadlineExceeded), want: false},
		{name: "plain error", err: errors.New("websocket: close 1006"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isDetachedNode(tt.err); got != tt.want {
				t.Fatalf("isDetachedNode(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
