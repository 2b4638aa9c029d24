package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishDeliversJSON(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close() //nolint:errcheck

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck

	client, err := pubsub.NewClient(ctx, "volscraper-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	topic, err := client.CreateTopic(ctx, "readings")
	require.NoError(t, err)

	pub := NewWithTopic(client, topic)
	id, err := pub.Publish(ctx, map[string]any{"event": "reading.inserted", "id": 7})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "reading.inserted", got["event"])
	require.Equal(t, "application/json", msgs[0].Attributes["content_type"])
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "x")
	require.Error(t, err)
	require.NoError(t, (&Publisher{}).Close())
}

func TestNewRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)
}
