// Command freshet runs a declarative stream query over newline-delimited
// JSON events from stdin, or serves the HTTP ingest/query API.
//
//	freshet run -q query.yaml < events.ndjson
//	freshet run -q query.yaml -partitions 4 < events.ndjson
//	freshet serve -l :9867
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/compiler/rungen"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/service"
	"github.com/freshet/freshet/stream"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "serve":
		err = serveCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "freshet: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: freshet run -q query.yaml [-partitions n] | freshet serve [-l addr]")
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	queryPath := fs.String("q", "", "YAML query file")
	partitions := fs.Int("partitions", 0, "run the pre-aggregate phase over n round-robin partitions")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *queryPath == "" {
		return fmt.Errorf("a query file is required (-q)")
	}
	src, err := os.ReadFile(*queryPath)
	if err != nil {
		return err
	}
	ops, err := compiler.ParseQuery(src)
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if *verbose {
		logger = zap.Must(zap.NewDevelopment())
	}
	rctx := runtime.NewContext(context.Background(), logger, nil)
	defer rctx.Cancel()
	b := rungen.NewBuilder(rctx)

	inputs := make([]*stream.Stream, max(1, *partitions))
	for i := range inputs {
		inputs[i] = stream.New()
	}
	var out *stream.Stream
	if *partitions > 0 {
		out, err = b.BuildDistributed(ops, inputs)
	} else {
		out, err = b.Build(runtime.Transform, ops, inputs[0])
	}
	if err != nil {
		return err
	}

	var wmu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	done := make(chan error, 1)
	out.Subscribe(func(v any) {
		wmu.Lock()
		defer wmu.Unlock()
		enc.Encode(v)
	}, func(err error) {
		done <- err
	})

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var n int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		in := inputs[n%len(inputs)]
		runtime.Protect(out, func() { in.Emit(v) })
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, in := range inputs {
		in.Close()
	}
	return <-done
}

func serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("l", ":9867", "listen address")
	limit := fs.Int("limit", 0, "default per-query result limit (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()
	rctx := runtime.NewContext(ctx, logger, nil)
	defer rctx.Cancel()
	core := service.NewCore(rctx, service.Config{
		Listen:            *addr,
		DefaultQueryLimit: *limit,
	})
	return core.Run(ctx)
}
