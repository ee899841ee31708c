package main

import (
	"context"
	"testing"
	"time"
)

func TestSoakCommand(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		workers     int
		failRate    float64
		hold        time.Duration
		wantErr     bool
		wantContain []string
		wantJSON    bool
	}{
		{
			name:        "no failures",
			capacity:    4,
			workers:     8,
			wantContain: []string{"Capacity: 4", "Workers: 8", "✓ Pool full at end (4/4 free)", "✓ Pool consistent"},
		},
		{
			name:     "with failures as JSON",
			capacity: 2,
			workers:  4,
			failRate: 0.5,
			hold:     100 * time.Microsecond,
			wantJSON: true,
		},
		{
			name:     "bad fail rate",
			capacity: 2,
			workers:  1,
			failRate: 1.5,
			wantErr:  true,
		},
		{
			name:     "no workers",
			capacity: 2,
			workers:  0,
			wantErr:  true,
		},
		{
			name:     "zero capacity",
			capacity: 0,
			workers:  1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.wantJSON
			soakCapacity = tt.capacity
			soakWorkers = tt.workers
			soakFailRate = tt.failRate
			soakHold = tt.hold

			output, err := captureOutput(t, func() error {
				return runSoak(context.Background())
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("runSoak() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
				return
			}
			if tt.wantErr {
				return
			}

			if tt.wantJSON {
				var report SoakReport
				assertJSON(t, output, &report)
				if !report.Consistent {
					t.Errorf("pool inconsistent: %+v", report)
				}
				if report.Constructed != report.Destroyed {
					t.Errorf("constructed %d != destroyed %d", report.Constructed, report.Destroyed)
				}
				if tt.failRate > 0 && report.ConstructorFailures == 0 {
					t.Errorf("expected injected constructor failures, got none")
				}
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestSoakCommand_MetricsServer(t *testing.T) {
	resetFlags()
	soakMetricsAddr = "127.0.0.1:0"

	output, err := captureOutput(t, func() error {
		return runSoak(context.Background())
	})
	if err != nil {
		t.Fatalf("runSoak() error = %v\nOutput: %s", err, output)
	}
	assertContains(t, output, []string{"✓ Pool consistent"})
}

func TestSetupLogging(t *testing.T) {
	resetFlags()
	logConfig = "weos.pool=TRACE"
	if err := setupLogging(); err != nil {
		t.Fatalf("setupLogging() error = %v", err)
	}

	logConfig = "weos.pool=NOPE"
	if err := setupLogging(); err == nil {
		t.Fatal("expected error for invalid level")
	}
	resetFlags()
}
