/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	flag "github.com/spf13/pflag"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/pkg/shmkv"
)

type benchOptions struct {
	ops       int
	workers   int
	keys      int
	readRatio float64
}

type benchResult struct {
	ops      int
	failed   int64
	elapsed  time.Duration
	p50, p99 time.Duration
	max      time.Duration
}

func (r benchResult) throughput() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.ops) / r.elapsed.Seconds()
}

// BenchCmd returns the bench command.
func BenchCmd(s *session) *Command {
	flags := flag.NewFlagSet("bench", flag.ContinueOnError)
	ops := flags.Int("ops", 100000, "number of operations")
	workers := flags.IntP("workers", "w", 8, "concurrent workers")
	keys := flags.Int("keys", 1000, "size of the key space")
	readRatio := flags.Float64("read-ratio", 0.8, "fraction of operations that are lookups")

	return &Command{
		Flags: flags,
		Usage: "bench [flags]",
		Short: "Run a mixed lookup/upsert workload and report latency",
		Long: "Run a mixed lookup/upsert workload against the region from a pool of\n" +
			"workers and report throughput and latency percentiles. Run it from\n" +
			"several processes at once to measure cross-process contention.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			opts := benchOptions{ops: *ops, workers: *workers, keys: *keys, readRatio: *readRatio}
			if err := opts.validate(); err != nil {
				return err
			}
			m, err := s.manager()
			if err != nil {
				return err
			}
			res, err := runBench(ctx, m, opts)
			if err != nil {
				return err
			}
			o.Printf("region:      %s (%s)\n", s.cfg.Name, s.cfg.Discipline)
			o.Printf("operations:  %d (%d failed)\n", res.ops, res.failed)
			o.Printf("elapsed:     %s\n", res.elapsed.Round(time.Millisecond))
			o.Printf("throughput:  %.0f ops/s\n", res.throughput())
			o.Printf("latency p50: %s\n", res.p50)
			o.Printf("latency p99: %s\n", res.p99)
			o.Printf("latency max: %s\n", res.max)
			return nil
		},
	}
}

func (b benchOptions) validate() error {
	switch {
	case b.ops <= 0:
		return errors.New("--ops must be positive")
	case b.workers <= 0:
		return errors.New("--workers must be positive")
	case b.keys <= 0 || b.keys > shmkv.MaxEntries:
		return fmt.Errorf("--keys must be in [1,%d]", shmkv.MaxEntries)
	case b.readRatio < 0 || b.readRatio > 1:
		return errors.New("--read-ratio must be in [0,1]")
	}
	return nil
}

func runBench(ctx context.Context, m api.Manager, opts benchOptions) (benchResult, error) {
	pool, err := ants.NewPool(opts.workers)
	if err != nil {
		return benchResult{}, err
	}
	defer pool.Release()

	samples := queuepkg.New(int64(opts.ops))
	defer samples.Dispose()

	var failed atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	submitted := 0
	for i := 0; i < opts.ops; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			key := int32(rand.Intn(opts.keys))
			t0 := time.Now()
			if rand.Float64() < opts.readRatio {
				_ = m.Lookup(key)
			} else if err := m.Upsert(key, "bench-"+strconv.Itoa(i)); err != nil {
				failed.Add(1)
			}
			_ = samples.Put(time.Since(t0))
		})
		if err != nil {
			wg.Done()
			return benchResult{}, err
		}
		submitted++
	}
	wg.Wait()
	res := benchResult{ops: submitted, failed: failed.Load(), elapsed: time.Since(start)}

	if n := samples.Len(); n > 0 {
		items, err := samples.Get(n)
		if err != nil {
			return benchResult{}, err
		}
		lat := make([]time.Duration, 0, len(items))
		for _, it := range items {
			lat = append(lat, it.(time.Duration))
		}
		slices.Sort(lat)
		res.p50 = lat[len(lat)/2]
		res.p99 = lat[len(lat)*99/100]
		res.max = lat[len(lat)-1]
	}
	return res, nil
}
