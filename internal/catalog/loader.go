package catalog

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, err
	}

	log.Debugf("catalog loaded from [%s]: %d plans", path, len(c.Plans))
	return c, nil
}

func LoadFromURL(ctx context.Context, httpClient *http.Client, url string) (_ *Catalog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalog.loadFromURL")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}

	c, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}

	log.Debugf("catalog loaded from [%s]: %d plans", url, len(c.Plans))
	return c, nil
}

// Source loads a catalog from a file path when set, otherwise from a URL.
type Source struct {
	Path       string
	URL        string
	HTTPClient *http.Client
}

func (s Source) Load(ctx context.Context) (*Catalog, error) {
	if s.Path != "" {
		return Load(s.Path)
	}
	if s.URL != "" {
		client := s.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		return LoadFromURL(ctx, client, s.URL)
	}
	return nil, fmt.Errorf("%w: no catalog source", ErrInvalidCatalog)
}
