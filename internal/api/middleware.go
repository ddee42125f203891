package api

import (
	"bufio"
	"net"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/metrics"
)

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var hijacked bool
		m := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
			next.ServeHTTP(httpsnoop.Wrap(ww, httpsnoop.Hooks{
				Hijack: func(hijack httpsnoop.HijackFunc) httpsnoop.HijackFunc {
					return func() (net.Conn, *bufio.ReadWriter, error) {
						hijacked = true
						return hijack()
					}
				},
			}), r)
		})

		fields := log.Fields{
			"method":   r.Method,
			"url":      r.URL.String(),
			"status":   m.Code,
			"duration": m.Duration,
			"bytes":    m.Written,
		}
		// upgraded connections answer with 101 on the raw socket and live
		// until the peer leaves, so they stay out of the latency histogram
		if hijacked {
			fields["status"] = http.StatusSwitchingProtocols
			log.WithFields(fields).Info("connection closed")
			return
		}

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(m.Code)).
			Observe(m.Duration.Seconds())
		log.WithFields(fields).Info("handled")
	})
}
