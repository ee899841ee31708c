package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ombre5733/weos-sub002/pool/mempool"
	"github.com/ombre5733/weos-sub002/pool/objpool"
)

var logger = loggo.GetLogger("weos.poolctl")

var (
	soakCapacity    int
	soakWorkers     int
	soakDuration    time.Duration
	soakHold        time.Duration
	soakTimeout     time.Duration
	soakFailRate    float64
	soakMetricsAddr string
	soakSeed        uint64
)

func init() {
	cmd := newSoakCmd()
	cmd.Flags().IntVar(&soakCapacity, "capacity", 16, "Number of objects the pool can hold")
	cmd.Flags().IntVar(&soakWorkers, "workers", 8, "Number of concurrent workers")
	cmd.Flags().DurationVar(&soakDuration, "duration", 2*time.Second, "How long to run")
	cmd.Flags().DurationVar(&soakHold, "hold", time.Millisecond, "How long a worker keeps each object")
	cmd.Flags().DurationVar(&soakTimeout, "timeout", 5*time.Millisecond, "How long a worker waits for room")
	cmd.Flags().Float64Var(&soakFailRate, "fail-rate", 0, "Fraction of constructions that fail on purpose (0-1)")
	cmd.Flags().StringVar(&soakMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().Uint64Var(&soakSeed, "seed", 1, "Seed for the failure injection")
	rootCmd.AddCommand(cmd)
}

func newSoakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Run concurrent workers against a shared object pool",
		Long: `The soak command starts a number of workers that construct, hold and
destroy objects in one shared object pool for a fixed time. Some constructors
can be made to fail on purpose to exercise rollback. When the run ends every
object must have been destroyed and the pool must be full again.

Example:
  poolctl soak --capacity 16 --workers 8 --duration 2s
  poolctl soak --fail-rate 0.1 --metrics-addr :9100 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoak(cmd.Context())
		},
	}
	return cmd
}

// session is the object type the soak workers construct.
type session struct {
	ID      uint64
	Worker  int
	Opened  int64
	Payload [8]uint64
	live    *atomic.Int64
}

func (s *session) Destroy() {
	s.live.Add(-1)
}

var errInjected = errors.New("injected constructor failure")

// SoakReport summarises a soak run.
type SoakReport struct {
	Capacity            int     `json:"capacity"`
	Workers             int     `json:"workers"`
	Duration            string  `json:"duration"`
	Constructed         int64   `json:"constructed"`
	Destroyed           int64   `json:"destroyed"`
	Timeouts            int64   `json:"timeouts"`
	ConstructorFailures int64   `json:"constructor_failures"`
	OpsPerSecond        float64 `json:"ops_per_second"`
	FinalFree           int     `json:"final_free"`
	LiveAtEnd           int64   `json:"live_at_end"`
	Consistent          bool    `json:"consistent"`
}

func runSoak(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if soakWorkers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", soakWorkers)
	}
	if soakFailRate < 0 || soakFailRate > 1 {
		return fmt.Errorf("--fail-rate must be between 0 and 1, got %g", soakFailRate)
	}

	var metrics mempool.MetricsProvider = mempool.NewNoopMetricsProvider()
	if soakMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = mempool.NewPrometheusMetricsProvider(reg, "soak")
		stop, err := serveMetrics(soakMetricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	clk := clock.WallClock
	p, err := objpool.NewShared[session](soakCapacity, &mempool.Options{
		Name:    "soak",
		Clock:   clk,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	printVerbose("Soaking pool of %d objects with %d workers for %s\n", soakCapacity, soakWorkers, soakDuration)

	var (
		live        atomic.Int64
		nextID      atomic.Uint64
		constructed atomic.Int64
		destroyed   atomic.Int64
		timeouts    atomic.Int64
		failures    atomic.Int64
	)
	runCtx, cancel := context.WithTimeout(ctx, soakDuration)
	defer cancel()

	start := clk.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for w := range soakWorkers {
		rng := rand.New(rand.NewPCG(soakSeed, uint64(w)))
		g.Go(func() error {
			for gctx.Err() == nil {
				fail := soakFailRate > 0 && rng.Float64() < soakFailRate
				obj, err := p.TryConstructFor(soakTimeout, func(s *session) error {
					if fail {
						return errInjected
					}
					s.ID = nextID.Add(1)
					s.Worker = w
					s.Opened = clk.Now().UnixNano()
					s.live = &live
					live.Add(1)
					return nil
				})
				switch {
				case errors.Is(err, errInjected):
					failures.Add(1)
					continue
				case err != nil:
					return err
				case obj == nil:
					timeouts.Add(1)
					continue
				}
				constructed.Add(1)

				if soakHold > 0 {
					select {
					case <-clk.After(soakHold):
					case <-gctx.Done():
					}
				}
				if err := p.Destroy(obj); err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				destroyed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := clk.Now().Sub(start)

	report := &SoakReport{
		Capacity:            p.Capacity(),
		Workers:             soakWorkers,
		Duration:            elapsed.Round(time.Millisecond).String(),
		Constructed:         constructed.Load(),
		Destroyed:           destroyed.Load(),
		Timeouts:            timeouts.Load(),
		ConstructorFailures: failures.Load(),
		FinalFree:           p.Size(),
		LiveAtEnd:           live.Load(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		report.OpsPerSecond = float64(report.Constructed) / secs
	}
	checkErr := p.Check()
	if checkErr != nil {
		logger.Errorf("pool check: %v", checkErr)
	}
	report.Consistent = checkErr == nil &&
		report.FinalFree == report.Capacity &&
		report.LiveAtEnd == 0 &&
		report.Constructed == report.Destroyed

	if err := p.Close(); err != nil {
		return fmt.Errorf("failed to close pool: %w", err)
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printSoakReport(report)
	}
	if !report.Consistent {
		return fmt.Errorf("pool inconsistent after soak")
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned stop func is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warningf("metrics server: %v", err)
		}
	}()
	printVerbose("Serving metrics on http://%s/metrics\n", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printSoakReport(r *SoakReport) {
	printInfo("\nSoak Results:\n")
	printInfo("  Capacity: %d\n", r.Capacity)
	printInfo("  Workers: %d\n", r.Workers)
	printInfo("  Duration: %s\n", r.Duration)
	printInfo("  Constructed: %d (%.0f/s)\n", r.Constructed, r.OpsPerSecond)
	printInfo("  Destroyed: %d\n", r.Destroyed)
	printInfo("  Timeouts: %d\n", r.Timeouts)
	printInfo("  Constructor failures: %d\n", r.ConstructorFailures)

	printInfo("\nChecks:\n")
	printInfo("  %s Pool full at end (%d/%d free)\n", mark(r.FinalFree == r.Capacity), r.FinalFree, r.Capacity)
	printInfo("  %s No live objects left (%d)\n", mark(r.LiveAtEnd == 0), r.LiveAtEnd)
	printInfo("  %s Pool consistent\n", mark(r.Consistent))
}
