// Package metrics exports ingestion counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pid_tuner"

// Prom implements service.IngestMetrics on its own registry.
type Prom struct {
	reg *prometheus.Registry

	linesRead      prometheus.Counter
	graceDiscarded prometheus.Counter
	parseFailures  *prometheus.CounterVec
	samples        prometheus.Counter
	windowLen      prometheus.Gauge
	windowCap      prometheus.Gauge
	discovered     prometheus.Counter
	commandsSent   prometheus.Counter
	linkErrors     prometheus.Counter
	linkUp         prometheus.Gauge
}

func NewProm() *Prom {
	p := &Prom{
		reg: prometheus.NewRegistry(),
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Complete lines read from the device.",
		}),
		graceDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grace_discarded_total",
			Help:      "Lines dropped during the post-connect grace window.",
		}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Lines that produced no sample, by failure kind.",
		}, []string{"kind"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples appended to the telemetry window.",
		}),
		windowLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_samples",
			Help:      "Samples currently held in the telemetry window.",
		}),
		windowCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_capacity",
			Help:      "Configured telemetry window capacity.",
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parameters_discovered_total",
			Help:      "Parameters seen for the first time.",
		}),
		commandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Parameter writes sent to the device.",
		}),
		linkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_errors_total",
			Help:      "Open, read and write failures on the device link.",
		}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_up",
			Help:      "1 while a device session is open.",
		}),
	}
	p.reg.MustRegister(
		p.linesRead, p.graceDiscarded, p.parseFailures, p.samples,
		p.windowLen, p.windowCap, p.discovered, p.commandsSent,
		p.linkErrors, p.linkUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) LineRead() { p.linesRead.Inc() }

func (p *Prom) GraceDiscarded() { p.graceDiscarded.Inc() }

func (p *Prom) ParseFailure(kind string) { p.parseFailures.WithLabelValues(kind).Inc() }

func (p *Prom) SampleAppended() { p.samples.Inc() }

func (p *Prom) WindowSize(windowLen, windowCap int) {
	p.windowLen.Set(float64(windowLen))
	p.windowCap.Set(float64(windowCap))
}

func (p *Prom) ParametersDiscovered(n int) { p.discovered.Add(float64(n)) }

func (p *Prom) CommandSent() { p.commandsSent.Inc() }

func (p *Prom) LinkError() { p.linkErrors.Inc() }

func (p *Prom) LinkUp(up bool) {
	if up {
		p.linkUp.Set(1)
		return
	}
	p.linkUp.Set(0)
}

// Registry exposes the underlying registry.
func (p *Prom) Registry() *prometheus.Registry { return p.reg }

// Handler serves the registry in the text exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}
