package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// ErrEmptyFeed is returned when a feed parses but holds no vehicles
var ErrEmptyFeed = errors.New("feed contains no vehicles")

const (
	FormatGTFSRT = "gtfsrt"
	FormatJSON   = "json"
)

// Source produces one batch per call
type Source interface {
	Fetch(ctx context.Context) (vehicles.Batch, error)
}

// Client fetches a vehicle feed over HTTP
type Client struct {
	url    string
	format string
	scope  string
	client *http.Client
	logger *slog.Logger
}

func NewClient(url, format, scope string, logger *slog.Logger) *Client {
	if format == "" {
		format = FormatGTFSRT
	}
	return &Client{
		url:    url,
		format: format,
		scope:  scope,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logging.OrDefault(logger),
	}
}

// Fetch downloads and decodes the feed
func (c *Client) Fetch(ctx context.Context) (vehicles.Batch, error) {
	body, err := c.download(ctx)
	if err != nil {
		return vehicles.Batch{}, err
	}

	var batch vehicles.Batch
	switch c.format {
	case FormatJSON:
		batch, err = DecodeJSONBatch(bytes.NewReader(body), c.scope)
		if err != nil {
			return vehicles.Batch{}, err
		}
	case FormatGTFSRT:
		msg := &gtfs.FeedMessage{}
		if err := proto.Unmarshal(body, msg); err != nil {
			return vehicles.Batch{}, fmt.Errorf("failed to parse protobuf: %w", err)
		}
		var skipped int
		batch, skipped = DecodeVehiclePositions(msg, c.scope)
		if skipped > 0 {
			c.logger.Warn("entities without position skipped",
				slog.String("scope", c.scope),
				slog.Int("count", skipped))
		}
	default:
		return vehicles.Batch{}, fmt.Errorf("unsupported feed format %q", c.format)
	}

	if len(batch.Samples) == 0 {
		return batch, ErrEmptyFeed
	}
	return batch, nil
}

func (c *Client) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
