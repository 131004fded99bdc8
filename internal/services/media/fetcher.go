package media

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/gemini-mastobot-go/internal/models"
	"github.com/sirupsen/logrus"
)

const maxImageBytes = 10 << 20 // 10 MB

// Fetcher downloads attachment images for multimodal prompting.
type Fetcher struct {
	client *http.Client
	logger *logrus.Logger
}

// NewFetcher creates a new media fetcher
func NewFetcher(logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Fetch downloads and decodes one attachment image. Any network or
// decode failure returns nil so the caller can continue without that
// image; retry policy lives in the generation layer, not here.
func (f *Fetcher) Fetch(ctx context.Context, url, description string) *models.MediaItem {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.WithError(err).WithField("url", url).Debug("Failed to build media request")
		return nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.WithError(err).WithField("url", url).Warn("Failed to fetch media")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.WithFields(logrus.Fields{
			"url":    url,
			"status": resp.StatusCode,
		}).Warn("Media fetch returned non-OK status")
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		f.logger.WithError(err).WithField("url", url).Warn("Failed to read media body")
		return nil
	}

	// Decode to verify this is actually an image before handing it to
	// the generative service.
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		f.logger.WithError(err).WithField("url", url).Warn("Failed to decode media as image")
		return nil
	}

	return &models.MediaItem{
		Data:        data,
		MIMEType:    "image/" + format,
		Description: description,
	}
}
