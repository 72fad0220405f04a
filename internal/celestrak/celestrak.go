// Package celestrak fetches the public SATCAT table used to map
// international designators to catalog numbers without touching the
// rate-limited history service.
package celestrak

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/observability"
	"github.com/signalsfoundry/satdecay/model"
)

// DefaultSatcatURL is the CelesTrak SATCAT CSV export.
const DefaultSatcatURL = "https://celestrak.org/pub/satcat.csv"

const serviceName = "celestrak"

// CallRecorder receives one sample per remote call.
type CallRecorder interface {
	ObserveRemoteCall(service, operation string, err error, d time.Duration)
}

// Client downloads and parses the SATCAT table.
type Client struct {
	url     string
	http    *http.Client
	metrics CallRecorder
	log     logging.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithURL overrides the SATCAT location.
func WithURL(u string) Option { return func(c *Client) { c.url = u } }

// WithHTTPClient sets the HTTP client used for the download.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithMetrics attaches a call recorder.
func WithMetrics(m CallRecorder) Option { return func(c *Client) { c.metrics = m } }

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		url:  DefaultSatcatURL,
		http: &http.Client{Timeout: 2 * time.Minute},
		log:  logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSatcat downloads the table and returns its rows. Transport failures,
// non-2xx responses and an empty table are reported as
// model.ErrSourceUnavailable.
func (c *Client) FetchSatcat(ctx context.Context) (rows []model.CatalogRow, err error) {
	ctx, span := observability.StartSpan(ctx, "celestrak.satcat", attribute.String("url", c.url))
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveRemoteCall(serviceName, "satcat_csv", err, time.Since(start))
		}
		observability.EndSpan(span, err)
	}()

	c.log.Info(ctx, "retrieving SATCAT data", logging.String("url", c.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build satcat request: %w", errors.Join(model.ErrSourceUnavailable, err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get satcat: %w", errors.Join(model.ErrSourceUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get satcat: unexpected status %s: %w", resp.Status, model.ErrSourceUnavailable)
	}

	rows, skipped, err := ParseSatcat(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read satcat: %w", errors.Join(model.ErrSourceUnavailable, err))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("satcat is empty: %w", model.ErrSourceUnavailable)
	}

	c.log.Info(ctx, "loaded SATCAT data",
		logging.Int("rows", len(rows)),
		logging.Int("skipped", skipped),
	)
	return rows, nil
}

// ParseSatcat reads comma-separated SATCAT rows: display name, designator,
// catalog number (may be blank) and, when present, object type. Lines with
// fewer than three fields, unparsable lines and the header row are skipped
// and counted.
func ParseSatcat(r io.Reader) ([]model.CatalogRow, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var (
		rows    []model.CatalogRow
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, err
		}
		if len(rec) < 3 {
			skipped++
			continue
		}
		designator := strings.TrimSpace(rec[1])
		if designator == "" || designator == "OBJECT_ID" {
			skipped++
			continue
		}
		number, _, perr := model.ParseCatalogNumber(rec[2])
		if perr != nil {
			// keep the designator; a non-numeric number is treated as blank
			number = 0
		}
		row := model.CatalogRow{
			DisplayName:   strings.TrimSpace(rec[0]),
			Designator:    designator,
			CatalogNumber: number,
		}
		if len(rec) > 3 {
			row.ObjectType = strings.TrimSpace(rec[3])
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}
