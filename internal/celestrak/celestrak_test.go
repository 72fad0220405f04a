package celestrak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/satdecay/model"
)

const satcatFixture = `OBJECT_NAME,OBJECT_ID,NORAD_CAT_ID,OBJECT_TYPE,OPS_STATUS_CODE
ISS (ZARYA),1998-067A,25544,PAY,+
"TIANHE, CORE",2021-035A,48274,PAY,+
broken line
PENDING,2024-999A,,PAY,
`

func TestParseSatcat(t *testing.T) {
	rows, skipped, err := ParseSatcat(strings.NewReader(satcatFixture))
	if err != nil {
		t.Fatalf("ParseSatcat: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3: %#v", len(rows), rows)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2 (header + short line)", skipped)
	}

	iss := rows[0]
	if iss.DisplayName != "ISS (ZARYA)" || iss.Designator != "1998-067A" || iss.CatalogNumber != 25544 || iss.ObjectType != "PAY" {
		t.Fatalf("unexpected ISS row %#v", iss)
	}
	if rows[1].DisplayName != "TIANHE, CORE" || rows[1].CatalogNumber != 48274 {
		t.Fatalf("quoted name not handled: %#v", rows[1])
	}
	if rows[2].HasCatalogNumber() {
		t.Fatalf("blank catalog number parsed as %d", rows[2].CatalogNumber)
	}
}

type recorder struct {
	calls []error
}

func (r *recorder) ObserveRemoteCall(service, operation string, err error, _ time.Duration) {
	r.calls = append(r.calls, err)
}

func TestFetchSatcat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(satcatFixture))
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(WithURL(srv.URL), WithHTTPClient(srv.Client()), WithMetrics(rec))
	rows, err := c.FetchSatcat(context.Background())
	if err != nil {
		t.Fatalf("FetchSatcat: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rec.calls) != 1 || rec.calls[0] != nil {
		t.Fatalf("recorded calls = %v, want one successful call", rec.calls)
	}
}

func TestFetchSatcatFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {}},
		{"header only", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("OBJECT_NAME,OBJECT_ID,NORAD_CAT_ID\n"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(WithURL(srv.URL), WithHTTPClient(srv.Client())).FetchSatcat(context.Background())
			if !errors.Is(err, model.ErrSourceUnavailable) {
				t.Fatalf("FetchSatcat error = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}

func TestFetchSatcatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(WithURL(url)).FetchSatcat(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("FetchSatcat error = %v, want ErrSourceUnavailable", err)
	}
}
