// Copyright (C) 2025 attestgate
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler serving this package's private
// registry as Prometheus/OpenMetrics text exposition.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Healthz reports liveness for orchestrators that probe a path separate
// from the metrics scrape target; it does not reflect tunnel readiness,
// only that the process is up and serving HTTP.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// NewMux builds the standalone metrics ServeMux: the collector exposition
// at path plus a /healthz liveness probe.
func NewMux(path string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/healthz", Healthz)
	return mux
}

// StartServer runs a standalone metrics+health HTTP server, blocking
// until the listener returns (normally on shutdown or bind error).
func StartServer(addr, path string) error {
	return http.ListenAndServe(addr, NewMux(path))
}
