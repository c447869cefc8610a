package gorough

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statistic struct {
	exchangeCounter *prometheus.CounterVec
	rttGauge        prometheus.Gauge
	radiusGauge     prometheus.Gauge
	offsetGauge     prometheus.Gauge
	gnssOffsetGauge prometheus.Gauge
}

func newStatistic(cfg *Config) *statistic {

	exchangeCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roughtime",
		Subsystem: "exchange",
		Name:      "total",
		Help:      "The total number of roughtime exchanges by result",
	}, []string{"result"})
	prometheus.MustRegister(exchangeCounter)

	rttGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roughtime",
		Subsystem: "stat",
		Name:      "rtt_us",
		Help:      "Round trip time of the last exchange",
	})
	prometheus.MustRegister(rttGauge)

	radiusGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roughtime",
		Subsystem: "stat",
		Name:      "radius_us",
		Help:      "Server reported error radius of the last exchange",
	})
	prometheus.MustRegister(radiusGauge)

	offsetGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roughtime",
		Subsystem: "stat",
		Name:      "system_offset_us",
		Help:      "System clock offset versus the authenticated time",
	})
	prometheus.MustRegister(offsetGauge)

	gnssOffsetGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roughtime",
		Subsystem: "stat",
		Name:      "gnss_offset_us",
		Help:      "GNSS clock offset versus the authenticated time",
	})
	prometheus.MustRegister(gnssOffsetGauge)

	http.Handle("/metrics", promhttp.Handler())
	Info.Printf("listen metric: %s", cfg.Metric)
	go http.ListenAndServe(cfg.Metric, nil)

	return &statistic{
		exchangeCounter: exchangeCounter,
		rttGauge:        rttGauge,
		radiusGauge:     radiusGauge,
		offsetGauge:     offsetGauge,
		gnssOffsetGauge: gnssOffsetGauge,
	}
}

func (s *statistic) observe(r *Result) {
	if s == nil {
		return
	}
	s.exchangeCounter.WithLabelValues("ok").Inc()
	s.rttGauge.Set(float64(r.RoundTripUs))
	s.radiusGauge.Set(float64(r.RadiusUs))
	s.offsetGauge.Set(float64(r.SystemOffsetUs))
	if r.GNSS != nil {
		s.gnssOffsetGauge.Set(float64(r.GNSS.OffsetUs))
	}
}

func (s *statistic) fail(reason string) {
	if s == nil {
		return
	}
	s.exchangeCounter.WithLabelValues(reason).Inc()
}
