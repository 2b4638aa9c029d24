package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck

	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "archive"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "  ", "text/html", []byte("x"))
	require.ErrorContains(t, err, "path is required")
}
