package media

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchImage(t *testing.T) {
	data := pngBytes(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	f := NewFetcher(testLogger())
	item := f.Fetch(context.Background(), server.URL, "a small square")

	require.NotNil(t, item)
	assert.Equal(t, "image/png", item.MIMEType)
	assert.Equal(t, "a small square", item.Description)
	assert.Equal(t, data, item.Data)
}

func TestFetchNonImageReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not an image"))
	}))
	defer server.Close()

	f := NewFetcher(testLogger())
	assert.Nil(t, f.Fetch(context.Background(), server.URL, ""))
}

func TestFetchServerErrorReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(testLogger())
	assert.Nil(t, f.Fetch(context.Background(), server.URL, ""))
}

func TestFetchUnreachableHostReturnsNil(t *testing.T) {
	f := NewFetcher(testLogger())
	assert.Nil(t, f.Fetch(context.Background(), "http://127.0.0.1:1/nope.png", ""))
}
