package objectstore

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	require.Equal(t, "images/abc-photo.png", ObjectKey("/images/", "photo.png", "abc"))
	require.Equal(t, "images/abc-photo.png", ObjectKey("images", `C:\Users\me\photo.png`, "abc"))
	require.Equal(t, "images/abc-upload.bin", ObjectKey("images", "", "abc"))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, zerolog.Nop())
	require.Error(t, err)

	store, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "evidence"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, maxPresignExpiry, store.expiry)
	require.Equal(t, "images", store.prefix)
}
