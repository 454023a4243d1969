package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Natural-Highs/authcore/internal"
	"github.com/Natural-Highs/authcore/mutation"
	"github.com/Natural-Highs/authcore/session"
	"github.com/Natural-Highs/authcore/store"
)

func main() {
	var (
		records     = flag.Int("records", 10000, "number of profile records to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (session + mutation)")
		hotset      = flag.Int("hotset", 64, "records the mutation phase contends on")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "nh", "redis key prefix")
	)
	flag.Parse()

	if *records <= 0 || *concurrency <= 0 || *ops <= 0 || *hotset <= 0 {
		fmt.Fprintln(os.Stderr, "records, concurrency, ops, and hotset must be > 0")
		os.Exit(2)
	}
	if *hotset > *records {
		*hotset = *records
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	documents := store.NewRedisStore(client, *prefix)

	fmt.Printf("seeding %d records...\n", *records)
	startSeed := time.Now()
	for i := 0; i < *records; i++ {
		id := fmt.Sprintf("rec-%d", i)
		if _, err := documents.Create(ctx, id, map[string]any{
			"city":     "Denver",
			"checkins": float64(0),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	codec := mustCodec()
	sessionStats := runSessionPhase(codec, *ops, *concurrency)
	mutationStats := runMutationPhase(ctx, documents, *hotset, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("session", sessionStats)
	printStats("mutation", mutationStats)
	fmt.Printf("mutation conflicts=%d exhausted=%d\n", mutationStats.conflicts, mutationStats.exhausted)
}

func mustCodec() *session.Codec {
	encoded, err := internal.NewSealSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "secret generation failed: %v\n", err)
		os.Exit(1)
	}
	secret, err := internal.DecodeSealSecret(encoded)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secret decode failed: %v\n", err)
		os.Exit(1)
	}
	codec, err := session.New(session.Config{
		Secret:      secret,
		Environment: "development",
		StandardTTL: session.StandardTTL,
		ExtendedTTL: session.ExtendedTTL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "codec build failed: %v\n", err)
		os.Exit(1)
	}
	return codec
}

// runSessionPhase measures a mint-then-open round trip, the hot path of every
// authenticated request.
func runSessionPhase(codec *session.Codec, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				token, err := codec.Mint(session.Record{
					Subject: fmt.Sprintf("user-%d", i),
					Claims:  session.ClaimConsentSigned,
				}, session.TierStandard)
				if err == nil {
					_, err = codec.Open(token)
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runMutationPhase hammers a small hot set of records with conditional writes
// from many workers, the worst case for the compare-and-swap path. Conflicts
// are resolved by rebasing up to the retry bound.
func runMutationPhase(ctx context.Context, documents store.DocumentStore, hotset, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		conflicts int64
		exhausted int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	coordinator := mutation.NewCoordinator(documents)
	bump := func(fields map[string]any) map[string]any {
		n, _ := fields["checkins"].(float64)
		fields["checkins"] = n + 1
		return fields
	}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := fmt.Sprintf("rec-%d", r.Intn(hotset))

				t0 := time.Now()
				err := casWithRebase(ctx, coordinator, documents, id, bump, &conflicts)
				d := time.Since(t0)

				if err != nil {
					if errors.Is(err, mutation.ErrReloadRequired) {
						atomic.AddInt64(&exhausted, 1)
					}
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	stats.conflicts = atomic.LoadInt64(&conflicts)
	stats.exhausted = atomic.LoadInt64(&exhausted)
	return stats
}

func casWithRebase(ctx context.Context, coordinator *mutation.Coordinator, documents store.DocumentStore, id string, update mutation.UpdateFunc, conflicts *int64) error {
	doc, err := documents.Get(ctx, id)
	if err != nil {
		return err
	}

	_, err = coordinator.Apply(ctx, id, doc.Version, update)
	for attempt := 1; err != nil; attempt++ {
		var conflict *mutation.ConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		atomic.AddInt64(conflicts, 1)
		if attempt >= mutation.MaxConflictRetries {
			return mutation.ErrReloadRequired
		}
		_, err = coordinator.Rebase(ctx, id, update)
	}
	return nil
}

type phaseStats struct {
	total     time.Duration
	ops       int
	failures  int64
	conflicts int64
	exhausted int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
