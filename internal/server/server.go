package server

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Handler(hub *Hub, ctrl CallController, warnings []string) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, ctrl)
	registerAPIRoutes(mux, ctrl, warnings)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func Serve(addr string, hub *Hub, ctrl CallController, warnings []string) error {
	log.Printf("control API at http://%s", addr)
	return http.ListenAndServe(addr, Handler(hub, ctrl, warnings))
}
