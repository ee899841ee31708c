package main

import (
	"fmt"
	"slices"
	"strings"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/ombre5733/weos-sub002/pool/mempool"
)

var (
	inspectType     string
	inspectCapacity int
	inspectStorage  string
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().StringVar(&inspectType, "type", "uint64", "Element type ("+strings.Join(inspectTypes, ", ")+")")
	cmd.Flags().IntVar(&inspectCapacity, "capacity", 10, "Number of chunks in the pool")
	cmd.Flags().StringVar(&inspectStorage, "storage", "heap", "Chunk storage (heap, mapped)")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the chunk layout of a memory pool",
		Long: `The inspect command creates a memory pool, allocates every chunk and
reports where each chunk lives relative to the first one. It then checks that
the chunks are distinct, aligned and do not overlap, that one more allocation
fails, and that a freed chunk is handed out again.

Example:
  poolctl inspect --type uint64 --capacity 10
  poolctl inspect --type complex128 --storage mapped --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect()
		},
	}
	return cmd
}

var inspectTypes = []string{
	"int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64", "complex128",
}

// ChunkInfo describes one allocated chunk.
type ChunkInfo struct {
	Index   int     `json:"index"`
	Offset  uintptr `json:"offset"`
	Aligned bool    `json:"aligned"`
}

// InspectReport is the result of a layout inspection.
type InspectReport struct {
	Type           string      `json:"type"`
	ElementSize    uintptr     `json:"element_size"`
	Alignment      uintptr     `json:"alignment"`
	Capacity       int         `json:"capacity"`
	Storage        string      `json:"storage"`
	Chunks         []ChunkInfo `json:"chunks"`
	Distinct       bool        `json:"distinct"`
	Aligned        bool        `json:"aligned"`
	NonOverlapping bool        `json:"non_overlapping"`
	ExhaustedAfter int         `json:"exhausted_after"`
	ReuseOK        bool        `json:"reuse_ok"`
}

// OK reports whether every check passed.
func (r *InspectReport) OK() bool {
	return r.Distinct && r.Aligned && r.NonOverlapping &&
		r.ExhaustedAfter == r.Capacity && r.ReuseOK
}

func runInspect() error {
	storage, err := mempool.ParseStorage(inspectStorage)
	if err != nil {
		return err
	}

	printVerbose("Inspecting pool of %d x %s (%s storage)\n", inspectCapacity, inspectType, storage)

	var report *InspectReport
	switch inspectType {
	case "int8":
		report, err = inspectPool[int8](inspectCapacity, storage)
	case "int16":
		report, err = inspectPool[int16](inspectCapacity, storage)
	case "int32":
		report, err = inspectPool[int32](inspectCapacity, storage)
	case "int64":
		report, err = inspectPool[int64](inspectCapacity, storage)
	case "uint8":
		report, err = inspectPool[uint8](inspectCapacity, storage)
	case "uint16":
		report, err = inspectPool[uint16](inspectCapacity, storage)
	case "uint32":
		report, err = inspectPool[uint32](inspectCapacity, storage)
	case "uint64":
		report, err = inspectPool[uint64](inspectCapacity, storage)
	case "float32":
		report, err = inspectPool[float32](inspectCapacity, storage)
	case "float64":
		report, err = inspectPool[float64](inspectCapacity, storage)
	case "complex128":
		report, err = inspectPool[complex128](inspectCapacity, storage)
	default:
		return fmt.Errorf("unknown type %q (want one of %s)", inspectType, strings.Join(inspectTypes, ", "))
	}
	if err != nil {
		return err
	}
	report.Type = inspectType

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printInspectReport(report)
	}
	if !report.OK() {
		return fmt.Errorf("pool layout check failed")
	}
	return nil
}

func inspectPool[T any](capacity int, storage mempool.Storage) (*InspectReport, error) {
	p, err := mempool.New[T](capacity, &mempool.Options{Name: "inspect", Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)
	report := &InspectReport{
		ElementSize: size,
		Alignment:   align,
		Capacity:    p.Capacity(),
		Storage:     p.Storage().String(),
		Distinct:    true,
		Aligned:     true,
	}

	var chunks []*T
	for c := p.TryAllocate(); c != nil; c = p.TryAllocate() {
		chunks = append(chunks, c)
	}
	report.ExhaustedAfter = len(chunks)
	if len(chunks) == 0 {
		return report, p.Close()
	}

	base := uintptr(unsafe.Pointer(chunks[0]))
	seen := make(map[*T]bool, len(chunks))
	addrs := make([]uintptr, 0, len(chunks))
	for i, c := range chunks {
		addr := uintptr(unsafe.Pointer(c))
		info := ChunkInfo{Index: i, Offset: addr - base, Aligned: addr%align == 0}
		report.Chunks = append(report.Chunks, info)
		report.Aligned = report.Aligned && info.Aligned
		if seen[c] {
			report.Distinct = false
		}
		seen[c] = true
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	report.NonOverlapping = true
	for i := 1; i < len(addrs); i++ {
		if addrs[i]-addrs[i-1] < size {
			report.NonOverlapping = false
		}
	}

	// Free the middle chunk and take it again.
	mid := chunks[len(chunks)/2]
	if err := p.Free(mid); err != nil {
		return nil, err
	}
	report.ReuseOK = p.TryAllocate() == mid && p.TryAllocate() == nil

	for _, c := range chunks {
		if err := p.Free(c); err != nil {
			return nil, err
		}
	}
	return report, p.Close()
}

func printInspectReport(r *InspectReport) {
	printInfo("\nPool Layout:\n")
	printInfo("  Type: %s (size %d, align %d)\n", r.Type, r.ElementSize, r.Alignment)
	printInfo("  Capacity: %d\n", r.Capacity)
	printInfo("  Storage: %s\n", r.Storage)

	printInfo("\nChunks:\n")
	for _, c := range r.Chunks {
		printInfo("  #%-4d offset %6d  %s aligned\n", c.Index, c.Offset, mark(c.Aligned))
	}

	printInfo("\nChecks:\n")
	printInfo("  %s Chunks distinct\n", mark(r.Distinct))
	printInfo("  %s Chunks aligned\n", mark(r.Aligned))
	printInfo("  %s Chunks do not overlap\n", mark(r.NonOverlapping))
	printInfo("  %s Exhausted after %d allocations\n", mark(r.ExhaustedAfter == r.Capacity), r.ExhaustedAfter)
	printInfo("  %s Freed chunk reused\n", mark(r.ReuseOK))
}
