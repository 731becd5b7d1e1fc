// Package service exposes the query engine over HTTP: an ingest endpoint
// feeding a shared broker stream, a query endpoint that compiles a YAML
// pipeline and streams its results, and Prometheus metrics.
package service

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/freshet/freshet/compiler/rungen"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
	"github.com/gorilla/mux"
	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config parameterizes a Core.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string
	// DefaultQueryLimit caps result rows per query when the request does
	// not set its own limit.  Zero means unlimited.
	DefaultQueryLimit int
}

var (
	ingestRate    = ratecounter.NewRateCounter(time.Second)
	ingestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freshet_ingested_events_total",
		Help: "Events accepted by the ingest endpoint.",
	})
	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "freshet_ingest_events_per_second",
		Help: "Ingest throughput over the last second.",
	}, func() float64 {
		return float64(ingestRate.Rate())
	})
)

// Core ties the broker stream, the pipeline builder, and the HTTP
// surface together.  Every ingested event fans out synchronously to all
// live queries.
type Core struct {
	conf    Config
	rctx    *runtime.Context
	builder *rungen.Builder
	broker  *stream.Stream
	router  *mux.Router
	logger  *zap.Logger

	mu      sync.Mutex
	queries map[string]*query
}

// NewCore returns a Core serving pipelines built in the given runtime
// context.
func NewCore(rctx *runtime.Context, conf Config) *Core {
	c := &Core{
		conf:    conf,
		rctx:    rctx,
		builder: rungen.NewBuilder(rctx),
		broker:  stream.New(),
		logger:  rctx.Logger.Named("service"),
		queries: make(map[string]*query),
	}
	c.router = c.routes()
	return c
}

func (c *Core) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/events", c.handleEvents).Methods(http.MethodPost)
	r.HandleFunc("/query", c.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/status", c.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(c.requestLogger)
	return r
}

// Handler returns the HTTP handler with CORS applied, suitable for
// httptest servers as well as Run.
func (c *Core) Handler() http.Handler {
	return cors.Default().Handler(c.router)
}

// Run serves HTTP until ctx is canceled, then shuts the server down and
// closes the broker so every live query drains.
func (c *Core) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    c.conf.Listen,
		Handler: c.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("listening", zap.String("addr", c.conf.Listen))
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		c.broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Ingest pushes one event to every live query.
func (c *Core) Ingest(rec any) {
	c.broker.Emit(rec)
	ingestRate.Incr(1)
	ingestedTotal.Inc()
}

func (c *Core) addQuery(q *query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries[q.id] = q
}

func (c *Core) removeQuery(q *query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.queries, q.id)
}

func (c *Core) queryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

func (c *Core) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
