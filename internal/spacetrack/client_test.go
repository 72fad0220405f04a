package spacetrack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/satdecay/model"
)

const gpHistoryFixture = `[
 {"GP_ID":"187651234","NORAD_CAT_ID":"25544","OBJECT_NAME":"ISS (ZARYA)","OBJECT_ID":"1998-067A",
  "EPOCH":"2021-10-02T14:10:59.123456","APOAPSIS":"421.100","PERIAPSIS":"417.846",
  "TLE_LINE1":"1 25544U","TLE_LINE2":"2 25544"},
 {"GP_ID":187651000,"NORAD_CAT_ID":25544,"OBJECT_NAME":"ISS (ZARYA)","EPOCH":"2021-10-01T02:00:00",
  "APOAPSIS":null,"PERIAPSIS":""}
]`

type fakeSpaceTrack struct {
	logins   int
	queries  []string
	reject   bool
	truncate bool
	status   int
	body     string
}

func (f *fakeSpaceTrack) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ajaxauth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins++
		if err := r.ParseForm(); err != nil || r.Method != http.MethodPost {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		if f.reject || r.PostForm.Get("identity") != "user@example.com" || r.PostForm.Get("password") != "secret" {
			_, _ = w.Write([]byte(`{"Login":"Failed"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "chocolatechip", Value: "session", Path: "/"})
		if f.truncate {
			w.Header().Set("Content-Length", "64")
		}
		_, _ = w.Write([]byte(`""`))
	})
	mux.HandleFunc("/basicspacedata/query/", func(w http.ResponseWriter, r *http.Request) {
		f.queries = append(f.queries, r.URL.EscapedPath())
		if _, err := r.Cookie("chocolatechip"); err != nil {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		if f.status != 0 {
			http.Error(w, "boom", f.status)
			return
		}
		_, _ = w.Write([]byte(f.body))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeSpaceTrack, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(creds, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

var goodCreds = Credentials{Identity: "user@example.com", Password: "secret"}

func TestLoginAndGPHistory(t *testing.T) {
	f := &fakeSpaceTrack{body: gpHistoryFixture}
	c := newTestClient(t, f, goodCreds)

	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	q := NewQuery(ClassGPHistory).Where(Equal(FieldCatalogNumber, model.CatalogNumber(25544)))
	rows, err := c.GPHistory(context.Background(), q)
	if err != nil {
		t.Fatalf("GPHistory: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := f.queries[0]; got != "/basicspacedata/query/class/gp_history/NORAD_CAT_ID/25544/format/json" {
		t.Fatalf("query path = %q", got)
	}

	rec, err := rows[0].Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	wantEpoch := time.Date(2021, 10, 2, 14, 10, 59, 123456000, time.UTC)
	if rec.RecordID != 187651234 || rec.CatalogNumber != 25544 || !rec.Epoch.Equal(wantEpoch) {
		t.Fatalf("unexpected record %#v", rec)
	}
	if rec.ApoapsisKm != 421.1 || rec.PeriapsisKm != 417.846 || !rows[0].HasAltitudes() {
		t.Fatalf("altitudes not decoded: %#v", rec)
	}
	if rows[1].HasAltitudes() {
		t.Fatalf("null/blank altitudes reported as present: %#v", rows[1])
	}
	if rows[1].GPID.Int() != 187651000 {
		t.Fatalf("bare numeric GP_ID not decoded: %#v", rows[1].GPID)
	}
}

func TestLoginFailures(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		f := &fakeSpaceTrack{}
		c := newTestClient(t, f, Credentials{Identity: "user@example.com"})
		err := c.Login(context.Background())
		if !errors.Is(err, model.ErrCredentialFailure) {
			t.Fatalf("Login error = %v, want ErrCredentialFailure", err)
		}
		if f.logins != 0 {
			t.Fatalf("login request sent without credentials")
		}
	})
	t.Run("truncated response", func(t *testing.T) {
		f := &fakeSpaceTrack{truncate: true}
		c := newTestClient(t, f, goodCreds)
		err := c.Login(context.Background())
		if !errors.Is(err, model.ErrSourceUnavailable) {
			t.Fatalf("Login error = %v, want ErrSourceUnavailable", err)
		}
		if errors.Is(err, model.ErrCredentialFailure) {
			t.Fatalf("truncated response reported as credential failure: %v", err)
		}
	})
	t.Run("rejected credentials", func(t *testing.T) {
		f := &fakeSpaceTrack{reject: true}
		c := newTestClient(t, f, goodCreds)
		if err := c.Login(context.Background()); !errors.Is(err, model.ErrCredentialFailure) {
			t.Fatalf("Login error = %v, want ErrCredentialFailure", err)
		}
	})
}

func TestQueryFailures(t *testing.T) {
	t.Run("before login", func(t *testing.T) {
		c := newTestClient(t, &fakeSpaceTrack{body: "[]"}, goodCreds)
		_, err := c.SatCat(context.Background(), NewQuery(ClassSatCat))
		if !errors.Is(err, model.ErrCredentialFailure) {
			t.Fatalf("SatCat error = %v, want ErrCredentialFailure", err)
		}
	})
	t.Run("server error", func(t *testing.T) {
		f := &fakeSpaceTrack{status: http.StatusInternalServerError}
		c := newTestClient(t, f, goodCreds)
		if err := c.Login(context.Background()); err != nil {
			t.Fatalf("Login: %v", err)
		}
		_, err := c.SatCat(context.Background(), NewQuery(ClassSatCat))
		if !errors.Is(err, model.ErrSourceUnavailable) {
			t.Fatalf("SatCat error = %v, want ErrSourceUnavailable", err)
		}
	})
	t.Run("malformed body", func(t *testing.T) {
		f := &fakeSpaceTrack{body: `{"error":"query too large"}`}
		c := newTestClient(t, f, goodCreds)
		if err := c.Login(context.Background()); err != nil {
			t.Fatalf("Login: %v", err)
		}
		_, err := c.GPHistory(context.Background(), NewQuery(ClassGPHistory))
		if !errors.Is(err, model.ErrSourceUnavailable) {
			t.Fatalf("GPHistory error = %v, want ErrSourceUnavailable", err)
		}
	})
}

func TestSatCatRows(t *testing.T) {
	f := &fakeSpaceTrack{body: `[{"INTLDES":"1998-067A","NORAD_CAT_ID":"25544","SATNAME":"ISS (ZARYA)","OBJECT_TYPE":"PAYLOAD"},
		{"INTLDES":"1998-067SZ","NORAD_CAT_ID":"49044","SATNAME":"CREW DRAGON"}]`}
	c := newTestClient(t, f, goodCreds)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	rows, err := c.SatCat(context.Background(), NewQuery(ClassSatCat).Where(StartsWith(FieldIntlDesignator, "1998-067")))
	if err != nil {
		t.Fatalf("SatCat: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	row := rows[1].Row()
	if row.Designator != "1998-067SZ" || row.CatalogNumber != 49044 || row.DisplayName != "CREW DRAGON" {
		t.Fatalf("unexpected row %#v", row)
	}
	if !strings.HasSuffix(f.queries[0], "/INTLDES/%5E1998-067/format/json") {
		t.Fatalf("prefix predicate not rendered: %q", f.queries[0])
	}
}

func TestDecimalUnmarshal(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
		err   bool
	}{
		{`"417.846"`, 417.846, true, false},
		{`12`, 12, true, false},
		{`null`, 0, false, false},
		{`""`, 0, false, false},
		{`"n/a"`, 0, false, true},
	}
	for _, tt := range tests {
		var d Decimal
		err := json.Unmarshal([]byte(tt.in), &d)
		if (err != nil) != tt.err {
			t.Fatalf("Unmarshal(%s) error = %v, want error %v", tt.in, err, tt.err)
		}
		if err == nil && (d.Value != tt.want || d.Valid != tt.valid) {
			t.Fatalf("Unmarshal(%s) = %+v, want %v/%v", tt.in, d, tt.want, tt.valid)
		}
	}
}

func TestParseEpoch(t *testing.T) {
	for _, in := range []string{"2021-10-02T14:10:59", "2021-10-02 14:10:59", "2021-10-02T14:10:59Z"} {
		got, err := ParseEpoch(in)
		if err != nil {
			t.Fatalf("ParseEpoch(%q): %v", in, err)
		}
		if want := time.Date(2021, 10, 2, 14, 10, 59, 0, time.UTC); !got.Equal(want) {
			t.Fatalf("ParseEpoch(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseEpoch("yesterday"); err == nil {
		t.Fatalf("ParseEpoch accepted garbage")
	}
}
