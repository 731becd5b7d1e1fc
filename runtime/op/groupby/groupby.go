// Package groupby implements the distributed group-by aggregator.  It
// routes each event to a dynamically instantiated sub-pipeline for that
// event's facet key, expires keys that go idle, and knows how to
// re-merge per-partition results on an aggregation node.
package groupby

import (
	"sync"
	"time"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/pkg/field"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/runtime/expr"
	"github.com/freshet/freshet/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultExpiration bounds how long a key may stay idle before its
// sub-pipeline is torn down.
const DefaultExpiration = time.Minute

var (
	spawnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "freshet",
		Subsystem: "groupby",
		Name:      "spawned_keys_total",
		Help:      "Per-key sub-pipelines instantiated.",
	})
	expiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "freshet",
		Subsystem: "groupby",
		Name:      "expired_keys_total",
		Help:      "Per-key sub-pipelines torn down by idle expiration.",
	})
)

func Registration() *runtime.Registration {
	return &runtime.Registration{
		Periodic: true,
		Transform: func(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
			return New(b, d, parent, runtime.Transform)
		},
		PreAggregate: func(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
			return New(b, d, parent, runtime.PreAggregate)
		},
		Aggregate: NewMerge,
	}
}

type config struct {
	name       string
	facet      expr.Getter
	identity   bool
	expiration time.Duration
	period     time.Duration
	nested     []*compiler.Descriptor
	periodic   bool
}

func configure(b runtime.Builder, d *compiler.Descriptor) (*config, error) {
	spec, ok := d.Primary("facet")
	if !ok || spec == nil {
		return nil, freshet.Invalidf(d.Name, "required facet is missing")
	}
	facet, err := expr.CompileGetter(spec)
	if err != nil {
		return nil, err
	}
	expiration, err := d.Duration("expiration", DefaultExpiration)
	if err != nil {
		return nil, err
	}
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	pathSpec, _ := spec.(string)
	return &config{
		name:       d.Name,
		facet:      facet,
		identity:   field.Dotted(pathSpec).IsThis() && pathSpec != "",
		expiration: expiration,
		period:     period,
		// The nested chain is only the child operators, so a spawned
		// sub-pipeline can never re-enter the grouping itself.
		nested:   d.Operators,
		periodic: b.IsPeriodic(d.Operators),
	}, nil
}

// New builds the partition-side aggregator: events are keyed by the
// facet and fanned out to one per-key instance of the nested pipeline,
// built for the given phase.  If the nested chain is not itself periodic
// a fixed-interval resampling stage is appended so every key emits on
// the flush cadence.  Output events are (key, value) pairs, the union of
// all live keys.
func New(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream, phase runtime.Phase) (*stream.Stream, error) {
	cfg, err := configure(b, d)
	if err != nil {
		return nil, err
	}
	if err := probe(b, phase, cfg.nested); err != nil {
		return nil, err
	}
	key := func(v any) (any, any, bool) {
		if !cfg.identity {
			if _, ok := freshet.AsRecord(v); !ok {
				// The resolver signals no-record: drop ahead of keying.
				return nil, nil, false
			}
		}
		k, _ := cfg.facet(v)
		return k, v, true
	}
	spawn := func(key any, in *stream.Stream) (*stream.Stream, error) {
		sub, err := b.Build(phase, cfg.nested, in)
		if err != nil {
			return nil, err
		}
		if !cfg.periodic {
			sub = resample(b.Context(), sub, cfg.period)
		}
		return tagged(sub, key), nil
	}
	return distribute(b.Context(), cfg, parent, key, spawn), nil
}

// NewMerge builds the aggregation-side entry point over a flattened
// stream of per-partition (key, value) pairs.  Events are re-keyed by
// the pair's key and only the value reaches the per-key sub-stream,
// which drives the nested chain's aggregate phase.  When the nested
// chain is non-periodic, per-partition value sequences are flattened
// first so partial windows recombine.
func NewMerge(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	cfg, err := configure(b, d)
	if err != nil {
		return nil, err
	}
	if err := probe(b, runtime.Aggregate, cfg.nested); err != nil {
		return nil, err
	}
	key := func(v any) (any, any, bool) {
		p, ok := v.(freshet.Pair)
		if !ok {
			return nil, nil, false
		}
		return p.Key, p.Value, true
	}
	spawn := func(key any, in *stream.Stream) (*stream.Stream, error) {
		if !cfg.periodic {
			in = stream.Flatten(in)
		}
		sub, err := b.Build(runtime.Aggregate, cfg.nested, in)
		if err != nil {
			return nil, err
		}
		if !cfg.periodic {
			sub = resample(b.Context(), sub, cfg.period)
		}
		return tagged(sub, key), nil
	}
	return distribute(b.Context(), cfg, parent, key, spawn), nil
}

// probe fails fast on nested-pipeline construction errors by building a
// throwaway instance and immediately tearing it down.
func probe(b runtime.Builder, phase runtime.Phase, nested []*compiler.Descriptor) error {
	in := stream.New()
	_, err := b.Build(phase, nested, in)
	in.Close()
	return err
}

func distribute(rctx *runtime.Context, cfg *config, parent *stream.Stream, key stream.KeyFunc, spawn stream.SpawnFunc) *stream.Stream {
	logger := rctx.Logger.With(zap.String("op", cfg.name))
	return stream.Distribute(parent, key, spawn, stream.DistributeOpts{
		Expiration: cfg.expiration,
		Sched:      rctx.Sched,
		KeyID:      freshet.KeyString,
		OnSpawn: func(key any) {
			spawnedTotal.Inc()
			logger.Debug("spawned sub-pipeline", zap.String("key", freshet.KeyString(key)))
		},
		OnExpire: func(key any) {
			expiredTotal.Inc()
			logger.Debug("expired idle key", zap.String("key", freshet.KeyString(key)))
		},
	})
}

func tagged(sub *stream.Stream, key any) *stream.Stream {
	return stream.Map(sub, func(v any) any {
		return freshet.Pair{Key: key, Value: v}
	})
}

// resample buffers a sub-pipeline's values and re-emits them as one
// sequence per flush tick, imposing a periodic cadence on a non-periodic
// nested chain.
func resample(rctx *runtime.Context, in *stream.Stream, period time.Duration) *stream.Stream {
	out := stream.New()
	var mu sync.Mutex
	var buf []any
	flush := func() ([]any, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(buf) == 0 {
			return nil, false
		}
		vals := buf
		buf = nil
		return vals, true
	}
	stop := rctx.Sched.Every(period, func(time.Time) {
		if vals, ok := flush(); ok {
			out.Emit(vals)
		}
	})
	in.Subscribe(func(v any) {
		mu.Lock()
		buf = append(buf, v)
		mu.Unlock()
	}, func(err error) {
		stop()
		if err != nil {
			out.Fail(err)
			return
		}
		if vals, ok := flush(); ok {
			out.Emit(vals)
		}
		out.Close()
	})
	return out
}
