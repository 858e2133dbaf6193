// Command asyncmy-bench runs a fixed number of single-row SELECTs
// against a pooled connection and reports latency statistics, grounded
// in original_source/benchmark/benchmark_select.py's select_asyncmy:
// acquire a pooled connection, run N parameterized queries in a loop,
// report elapsed time. Generalized from one aggregate elapsed-time
// print to a full latency distribution via montanaflynn/stats, since a
// Go benchmark runs in-process rather than once per call into the
// Python interpreter and can cheaply record every sample.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/long2ice/asyncmy"
	"github.com/long2ice/asyncmy/codec"
	"github.com/long2ice/asyncmy/pool"
	"github.com/long2ice/asyncmy/resultset"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:3306", "server address")
	user := flag.String("user", "root", "username")
	password := flag.String("password", "", "password")
	database := flag.String("database", "test", "database")
	table := flag.String("table", "asyncmy", "table with an indexed `id` column")
	iterations := flag.Int("n", 10000, "number of SELECTs to run")
	poolSize := flag.Int("pool-size", 4, "pool MaxSize")
	flag.Parse()

	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	ctx := context.Background()

	opts := &asyncmy.Options{
		Addr:           *addr,
		User:           *user,
		Password:       *password,
		DBName:         *database,
		ConnectTimeout: 5 * time.Second,
	}
	p, err := asyncmy.NewPool(ctx, pool.Config{MaxSize: *poolSize, MinSize: *poolSize}, opts, &log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bench: connect pool:", err)
		os.Exit(1)
	}
	defer p.Close()

	conn, err := p.Acquire(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bench: acquire:", err)
		os.Exit(1)
	}
	defer p.Release(conn)

	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", *table)
	samples := make([]float64, 0, *iterations)

	for i := 1; i <= *iterations; i++ {
		start := time.Now()
		rows, err := conn.Query(query, i)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bench: query:", err)
			os.Exit(1)
		}
		if err := drain(rows); err != nil {
			fmt.Fprintln(os.Stderr, "bench: drain:", err)
			os.Exit(1)
		}
		samples = append(samples, float64(time.Since(start).Microseconds()))
	}

	report(samples)
}

func drain(rows *resultset.Rows) error {
	vals := make([]codec.Value, len(rows.Fields()))
	for {
		more, err := rows.Next(vals)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func report(samples []float64) {
	data := stats.Float64Data(samples)
	min, _ := stats.Min(data)
	mean, _ := stats.Mean(data)
	p95, _ := stats.Percentile(data, 95)
	p99, _ := stats.Percentile(data, 99)
	max, _ := stats.Max(data)

	fmt.Printf("n=%d\n", len(samples))
	fmt.Printf("min=%.0fus mean=%.0fus p95=%.0fus p99=%.0fus max=%.0fus\n", min, mean, p95, p99, max)
}
