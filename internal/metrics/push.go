package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"mintrunner/internal/model"
)

const (
	MetricNameSpace = "mintrunner"
	JobName         = "mintrunner"
)

// RunGauges holds the gauges describing the last run.
type RunGauges struct {
	registry *prometheus.Registry

	freeMints       prometheus.Gauge
	usedMints       prometheus.Gauge
	gkInCirculation prometheus.Gauge
	publicMints     prometheus.Gauge
	degraded        prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricNameSpace,
		Name:      name,
		Help:      help,
	})
}

func NewRunGauges() *RunGauges {
	g := &RunGauges{
		registry:        prometheus.NewRegistry(),
		freeMints:       newGauge("free_mints", "profile mints still available to circulating genesis keys"),
		usedMints:       newGauge("used_mints", "profile mints claimed against genesis keys"),
		gkInCirculation: newGauge("gk_in_circulation", "genesis keys outside the reserved pools"),
		publicMints:     newGauge("public_mints", "profiles minted outside genesis key claims"),
		degraded:        newGauge("degraded", "1 if the last run was computed from incomplete inputs"),
		lastSuccess:     newGauge("last_success_timestamp_seconds", "unix time of the last completed run"),
	}
	g.registry.MustRegister(g.freeMints, g.usedMints, g.gkInCirculation, g.publicMints, g.degraded, g.lastSuccess)
	return g
}

// Observe records row. The public mint gauge is left untouched when the row has none.
func (g *RunGauges) Observe(row model.MintRow, now time.Time) {
	g.freeMints.Set(float64(row.FreeMints))
	g.usedMints.Set(float64(row.UsedMints))
	g.gkInCirculation.Set(float64(row.GKInCirculation))
	if row.PublicMints != nil {
		g.publicMints.Set(float64(*row.PublicMints))
	}
	if row.Degraded {
		g.degraded.Set(1)
	} else {
		g.degraded.Set(0)
	}
	g.lastSuccess.Set(float64(now.Unix()))
}

// Gatherer exposes the registry for tests and alternative exporters.
func (g *RunGauges) Gatherer() prometheus.Gatherer {
	return g.registry
}

// Push sends the gauges to a Pushgateway, grouped by table.
func (g *RunGauges) Push(ctx context.Context, url string, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return push.New(url, JobName).
		Client(ctxDoer{ctx: ctx, client: http.DefaultClient}).
		Gatherer(g.registry).
		Grouping("table", table).
		Push()
}

// ctxDoer binds outgoing push requests to ctx.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}
