package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

type apiError struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, err error, fallback int) {
	code := fallback
	if freshet.IsValidation(err) {
		code = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(apiError{Error: err.Error()})
}

// handleEvents ingests a body of newline-delimited JSON values.  A value
// that decodes to an array is flattened into one event per element.
func (c *Core) handleEvents(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var n int
	for {
		var v any
		if err := dec.Decode(&v); err == io.EOF {
			break
		} else if err != nil {
			respondError(w, err, http.StatusBadRequest)
			return
		}
		if elems, ok := v.([]any); ok {
			for _, e := range elems {
				c.Ingest(jsonNumbers(e))
				n++
			}
			continue
		}
		c.Ingest(jsonNumbers(v))
		n++
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"ingested": n})
}

type query struct {
	id      string
	started time.Time
}

// handleQuery compiles the YAML pipeline in the request body, attaches
// it to the broker, and streams its output as newline-delimited JSON
// until the pipeline closes, the client disconnects, or the row limit is
// reached.
func (c *Core) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, err, http.StatusBadRequest)
		return
	}
	ops, err := compiler.ParseQuery(body)
	if err != nil {
		respondError(w, err, http.StatusBadRequest)
		return
	}
	limit := c.conf.DefaultQueryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil {
			respondError(w, err, http.StatusBadRequest)
			return
		}
	}
	bridge := stream.New()
	out, err := c.builder.Build(runtime.Transform, ops, bridge)
	if err != nil {
		bridge.Close()
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	q := &query{id: ksuid.New().String(), started: time.Now()}
	c.addQuery(q)
	defer c.removeQuery(q)
	logger := c.logger.With(zap.String("query", q.id))
	logger.Info("query started", zap.Int("operators", len(ops)))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	// Events can arrive from concurrent ingest requests and from
	// scheduler ticks, so response writes are serialized.
	var wmu sync.Mutex
	var n int
	cancelOut := out.Subscribe(func(v any) {
		wmu.Lock()
		defer wmu.Unlock()
		if limit > 0 && n >= limit {
			return
		}
		if err := enc.Encode(encodable(v)); err != nil {
			finish(err)
			return
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
		if limit > 0 && n >= limit {
			finish(nil)
		}
	}, finish)
	// A panic anywhere in this query's operators fails only this
	// query's output, not the broker.
	cancelIn := c.broker.Subscribe(func(v any) {
		runtime.Protect(out, func() { bridge.Emit(v) })
	}, func(err error) {
		if err != nil {
			bridge.Fail(err)
			return
		}
		bridge.Close()
	})
	select {
	case err = <-done:
	case <-r.Context().Done():
		err = nil
	}
	cancelIn()
	cancelOut()
	bridge.Close()
	if err != nil {
		logger.Warn("query failed", zap.Error(err), zap.Int("rows", n))
		return
	}
	logger.Info("query finished", zap.Int("rows", n))
}

func (c *Core) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"queries":           c.queryCount(),
		"ingest_per_second": ingestRate.Rate(),
	})
}

// encodable rewrites pipeline values into JSON-friendly shapes: pairs
// become {key, value} objects, recursively.
func encodable(v any) any {
	switch v := v.(type) {
	case freshet.Pair:
		return map[string]any{
			"key":   encodable(v.Key),
			"value": encodable(v.Value),
		}
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = encodable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = encodable(e)
		}
		return out
	}
	return v
}

// jsonNumbers rewrites json.Number leaves into int64 or float64 so the
// comparison and statistics engines see ordinary numerics.
func jsonNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		for i, e := range v {
			v[i] = jsonNumbers(e)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = jsonNumbers(e)
		}
		return v
	}
	return v
}
