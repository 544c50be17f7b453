package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	jobpubsub "github.com/JakeFAU/jobsearch-crawler/internal/publisher/pubsub"
)

func newTestClient(t *testing.T) *pubsub.Client {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublisherPublishesJSONEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newTestClient(t)
	topic, err := client.CreateTopic(ctx, "jobs")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "jobs-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub, err := jobpubsub.NewWithClient(ctx, client, "jobs")
	require.NoError(t, err)

	title := "Go Engineer"
	event := crawler.JobValidated{
		RunID:       "run-1",
		JobID:       "81234567",
		URL:         "https://jobs.example.com/job/81234567",
		Term:        "golang",
		Title:       &title,
		ValidatedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, event))

	received := make(chan *pubsub.Message, 1)
	recvCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			stop()
		})
	}()

	select {
	case msg := <-received:
		var got crawler.JobValidated
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, event.JobID, got.JobID)
		require.Equal(t, event.Term, got.Term)
		require.Equal(t, title, *got.Title)
		require.Equal(t, "run-1", msg.Attributes["run_id"])
		require.Equal(t, "golang", msg.Attributes["term"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
	stop()
	require.NoError(t, pub.Close())
}

func TestNewWithClientMissingTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newTestClient(t)
	_, err := jobpubsub.NewWithClient(ctx, client, "absent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestNewWithClientRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := jobpubsub.NewWithClient(context.Background(), nil, "jobs")
	require.Error(t, err)
}
