package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// EmbeddingClient calls the CLIP embedding sidecar. Text and image embeddings
// live in the same vector space as the order preference vectors, which is what
// makes cosine scoring against either meaningful.
type EmbeddingClient struct {
	config  shared.ServiceConfig
	apiKey  string
	factory *shared.HTTPClientFactory

	// RasterizeSVG controls the headless-browser fallback for vector images.
	RasterizeSVG bool
}

func NewEmbeddingClient(config shared.ServiceConfig, apiKey string, factory *shared.HTTPClientFactory) *EmbeddingClient {
	return &EmbeddingClient{
		config:       config,
		apiKey:       apiKey,
		factory:      factory,
		RasterizeSVG: true,
	}
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedText returns the embedding vector for a text snippet.
func (c *EmbeddingClient) EmbedText(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	return c.post(ctx, "/embed/text", payload)
}

// EmbedImage downloads the image at imageURL and returns its embedding vector.
// SVG sources are rasterized through a headless browser first; any fetch,
// decode or rasterization failure returns an error the caller degrades to a
// nil vector.
func (c *EmbeddingClient) EmbedImage(ctx context.Context, imageURL string) ([]float64, error) {
	imageData, contentType, err := c.downloadImage(ctx, imageURL)
	if err != nil {
		return nil, shared.NewEmbeddingUnavailableError("EmbedImage", err)
	}

	if isSVG(contentType, imageData) {
		if !c.RasterizeSVG {
			return nil, shared.NewEmbeddingUnavailableError("EmbedImage",
				fmt.Errorf("vector image at %s and rasterization disabled", imageURL))
		}

		rasterized, err := rasterizeSVG(ctx, imageData)
		if err != nil {
			return nil, shared.NewEmbeddingUnavailableError("EmbedImage", err)
		}
		imageData = rasterized

		logrus.WithField("image_url", imageURL).Debug("Rasterized SVG image before embedding")
	}

	payload, err := json.Marshal(map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return nil, err
	}

	vector, err := c.post(ctx, "/embed/image", payload)
	if err != nil {
		return nil, shared.NewEmbeddingUnavailableError("EmbedImage", err)
	}
	return vector, nil
}

func (c *EmbeddingClient) post(ctx context.Context, path string, payload []byte) ([]float64, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	client := c.factory.Client(c.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, c.config.MaxRetryAttempts)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unparseable embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}

	return parsed.Embedding, nil
}

func (c *EmbeddingClient) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	shared.SetAPIHeaders(request, "accept", "")

	client := c.factory.Client(c.config.HTTPRequestTimeout)
	response, err := client.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned HTTP %d", response.StatusCode)
	}

	// 20MB cap keeps a single oversized asset from stalling a refresh pass
	data, err := io.ReadAll(io.LimitReader(response.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}

	return data, response.Header.Get("Content-Type"), nil
}

func isSVG(contentType string, data []byte) bool {
	if strings.Contains(contentType, "image/svg") {
		return true
	}
	head := bytes.TrimSpace(data)
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

// rasterizeSVG renders an SVG in headless Chrome and screenshots it as PNG.
func rasterizeSVG(ctx context.Context, svgData []byte) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancelTimeout()

	dataURL := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svgData)

	var screenshot []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(512, 512),
		chromedp.Navigate(dataURL),
		chromedp.FullScreenshot(&screenshot, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("SVG rasterization failed: %w", err)
	}

	return screenshot, nil
}
