// Package metrics holds the Prometheus collectors shared across the backend.
//
// Metrics:
//   - foodplanner_ingestion_runs_total{status}
//   - foodplanner_products_upserted_total{store}
//   - foodplanner_scraper_requests_total{scraper,outcome}
//   - foodplanner_matches_created_total
//   - foodplanner_tasks_processed_total{type,outcome}
//   - foodplanner_http_request_duration_seconds{method,route,status}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "foodplanner"

var (
	IngestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_runs_total",
		Help:      "Ingestion runs by final status",
	}, []string{"status"})

	ProductsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_upserted_total",
		Help:      "Products written by ingestion and scraping",
	}, []string{"store"})

	ScraperRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scraper_requests_total",
		Help:      "Outbound scraper and connector requests by outcome",
	}, []string{"scraper", "outcome"})

	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_created_total",
		Help:      "Ingredient to product matches stored",
	})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_processed_total",
		Help:      "Background tasks handled by the worker",
	}, []string{"type", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
