package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	if err := pub.Publish(context.Background(), crawler.JobValidated{JobID: "1", Term: "go"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(context.Background(), crawler.JobValidated{JobID: "2", Term: "rust"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	events := pub.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].JobID != "1" || events[1].Term != "rust" {
		t.Fatalf("events not recorded correctly: %+v", events)
	}

	events[0].JobID = "modified"
	if pub.Events()[0].JobID == "modified" {
		t.Fatal("expected Events() to return a copy")
	}
}

func TestFailingPublisherStillRecords(t *testing.T) {
	t.Parallel()

	boom := errors.New("topic not found")
	pub := NewFailing(boom)
	err := pub.Publish(context.Background(), crawler.JobValidated{JobID: "1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if len(pub.Events()) != 1 {
		t.Fatal("expected the event to be recorded")
	}
}
