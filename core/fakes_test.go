package core

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/satdecay/internal/spacetrack"
	"github.com/signalsfoundry/satdecay/kb"
	"github.com/signalsfoundry/satdecay/model"
	"github.com/signalsfoundry/satdecay/timectrl"
)

// fakeRemote answers satcat and gp_history queries from fixed tables keyed
// by the predicate value, and records every call.
type fakeRemote struct {
	mu sync.Mutex

	loginErr   error
	satcatErr  error
	historyErr map[model.CatalogNumber]error

	exact   map[string][]spacetrack.SatCat // INTLDES -> rows
	prefix  map[string][]spacetrack.SatCat // prefix -> rows
	history map[model.CatalogNumber][]spacetrack.GPHistory

	logins  int
	queries []spacetrack.Query
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		historyErr: make(map[model.CatalogNumber]error),
		exact:      make(map[string][]spacetrack.SatCat),
		prefix:     make(map[string][]spacetrack.SatCat),
		history:    make(map[model.CatalogNumber][]spacetrack.GPHistory),
	}
}

func (f *fakeRemote) Login(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginErr
}

func (f *fakeRemote) SatCat(_ context.Context, q spacetrack.Query) ([]spacetrack.SatCat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.satcatErr != nil {
		return nil, f.satcatErr
	}
	p, _ := q.Predicate(spacetrack.FieldIntlDesignator)
	if p.Op == spacetrack.OpStartsWith {
		return f.prefix[p.Value], nil
	}
	return f.exact[p.Value], nil
}

func (f *fakeRemote) GPHistory(_ context.Context, q spacetrack.Query) ([]spacetrack.GPHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	p, _ := q.Predicate(spacetrack.FieldCatalogNumber)
	n, _, _ := model.ParseCatalogNumber(p.Value)
	if err := f.historyErr[n]; err != nil {
		return nil, err
	}
	return f.history[n], nil
}

func (f *fakeRemote) calls() []spacetrack.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spacetrack.Query(nil), f.queries...)
}

type staticLoader struct {
	catalog *kb.Catalog
	err     error
	loads   int
}

func (s *staticLoader) Load(context.Context) (*kb.Catalog, error) {
	s.loads++
	return s.catalog, s.err
}

func dec(v float64) spacetrack.Decimal { return spacetrack.Decimal{Value: v, Valid: true} }

func satcatRow(designator string, n model.CatalogNumber, name string) spacetrack.SatCat {
	return spacetrack.SatCat{IntlDesignator: designator, CatalogNumber: dec(float64(n)), SatName: name}
}

func gpRow(id model.RecordID, n model.CatalogNumber, epoch time.Time, apo, peri float64) spacetrack.GPHistory {
	return spacetrack.GPHistory{
		GPID:          dec(float64(id)),
		CatalogNumber: dec(float64(n)),
		ObjectName:    "OBJECT " + n.String(),
		Epoch:         epoch.UTC().Format("2006-01-02T15:04:05.000000"),
		Apoapsis:      dec(apo),
		Periapsis:     dec(peri),
	}
}

func testThrottle() (*Throttle, *timectrl.ManualClock) {
	clock := timectrl.NewManualClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	return NewThrottle(DefaultThrottleDelay, clock), clock
}

// recordingMetrics captures the calls made on Metrics.
type recordingMetrics struct {
	mu          sync.Mutex
	waits       []time.Duration
	resolutions map[string]int
	records     int
	entities    int
	ratios      map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{resolutions: make(map[string]int), ratios: make(map[string]float64)}
}

func (m *recordingMetrics) ObserveThrottleWait(d time.Duration) {
	m.mu.Lock()
	m.waits = append(m.waits, d)
	m.mu.Unlock()
}

func (m *recordingMetrics) IncResolution(kind, source string) {
	m.mu.Lock()
	m.resolutions[kind+"/"+source]++
	m.mu.Unlock()
}

func (m *recordingMetrics) AddRecordsFetched(n int) {
	m.mu.Lock()
	m.records += n
	m.mu.Unlock()
}

func (m *recordingMetrics) SetEntities(n int) {
	m.mu.Lock()
	m.entities = n
	m.mu.Unlock()
}

func (m *recordingMetrics) SetMemoHitRatio(cache string, ratio float64) {
	m.mu.Lock()
	m.ratios[cache] = ratio
	m.mu.Unlock()
}
