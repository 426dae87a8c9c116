package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pagegate_active_sessions",
	Help: "Number of live streaming sessions",
})

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PublicMetrics {
		if _, ok := s.directory.Lookup(credentialFromRequest(r)); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	promhttp.Handler().ServeHTTP(w, r)
}
