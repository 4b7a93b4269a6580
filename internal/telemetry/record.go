// Package telemetry turns host stats snapshots into the figures the panel
// shows: RAM split, average CPU with a severity band, optional server
// process metrics and one stable slot per core.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"srvpanel/internal/apierr"
)

// Wire is the JSON document pushed on the stats stream. The server_* fields
// are null while the game server is not running.
type Wire struct {
	CPUUsages       []float64 `json:"cpu_usages"`
	RAMUsed         uint64    `json:"ram_used"`
	RAMFree         uint64    `json:"ram_free"`
	ServerCPUUsage  *float64  `json:"server_cpu_usage"`
	ServerRAMUsage  *uint64   `json:"server_ram_usage"`
	ServerDiskUsage *uint64   `json:"server_disk_usage"`
}

// Optional holds a value that may be absent. Absent is distinct from zero.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None is an absent value.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// Present reports whether a value is held.
func (o Optional[T]) Present() bool { return o.ok }

func optionalFrom[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Record is a normalized snapshot.
type Record struct {
	SystemRAMFree uint64
	SystemRAMUsed uint64
	PerCoreCPU    []float64
	ServerCPU     Optional[float64]
	ServerRAM     Optional[uint64]
	ServerDisk    Optional[uint64]
}

// Decode parses one stats message. Failures are KindDecode errors.
func Decode(data []byte) (Record, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, apierr.New(apierr.KindDecode, "stats", err)
	}
	return Record{
		SystemRAMFree: w.RAMFree,
		SystemRAMUsed: w.RAMUsed,
		PerCoreCPU:    w.CPUUsages,
		ServerCPU:     optionalFrom(w.ServerCPUUsage),
		ServerRAM:     optionalFrom(w.ServerRAMUsage),
		ServerDisk:    optionalFrom(w.ServerDiskUsage),
	}, nil
}

// Band is the severity of the average CPU load.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	default:
		return "low"
	}
}

// BandFor buckets a CPU percentage: <50 low, <80 medium, otherwise high.
func BandFor(percent float64) Band {
	switch {
	case percent >= 80:
		return BandHigh
	case percent >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// Metrics are the values computed from a Record; nothing here is trusted
// from the wire.
type Metrics struct {
	RAMFree        uint64
	RAMUsed        uint64
	RAMTotal       uint64
	RAMFreePercent float64
	RAMUsedPercent float64
	AverageCPU     float64
	CPUBand        Band
	ServerCPU      Optional[float64]
	ServerRAM      Optional[uint64]
	ServerDisk     Optional[uint64]
}

// Derive computes Metrics for rec.
func Derive(rec Record) Metrics {
	m := Metrics{
		RAMFree:    rec.SystemRAMFree,
		RAMUsed:    rec.SystemRAMUsed,
		RAMTotal:   rec.SystemRAMFree + rec.SystemRAMUsed,
		ServerRAM:  rec.ServerRAM,
		ServerDisk: rec.ServerDisk,
	}
	if m.RAMTotal > 0 {
		m.RAMFreePercent = float64(rec.SystemRAMFree) / float64(m.RAMTotal) * 100
		m.RAMUsedPercent = float64(rec.SystemRAMUsed) / float64(m.RAMTotal) * 100
	}

	cores := len(rec.PerCoreCPU)
	if cores > 0 {
		var sum float64
		for _, v := range rec.PerCoreCPU {
			sum += v
		}
		m.AverageCPU = sum / float64(cores)
	}
	m.CPUBand = BandFor(m.AverageCPU)

	// The host reports process CPU as a sum over cores, so it is divided by
	// the core count. If it is ever sent as a single-core percentage this
	// under-reports by that factor.
	if raw, ok := rec.ServerCPU.Get(); ok {
		if cores > 0 {
			raw /= float64(cores)
		}
		m.ServerCPU = Some(raw)
	} else {
		m.ServerCPU = None[float64]()
	}
	return m
}

// Unmeasurable stands in for server metrics while no server is running.
const Unmeasurable = "N/A"

// FormatPercent renders a percentage with two decimals.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatBytes renders a byte count in B/KB/MB/GB with at most two decimals.
func FormatBytes(bytes uint64) string {
	if bytes == 0 {
		return "0 B"
	}
	sizes := []string{"B", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizes)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizes[i]
}

// Display is the text for each readout.
type Display struct {
	SystemRAM  string
	AverageCPU string
	ServerCPU  string
	ServerRAM  string
	ServerDisk string
}

// Display renders m; absent server metrics show Unmeasurable, never 0.
func (m Metrics) Display() Display {
	d := Display{
		SystemRAM: fmt.Sprintf("%s used / %s total (%s used, %s free)",
			FormatBytes(m.RAMUsed), FormatBytes(m.RAMTotal), FormatPercent(m.RAMUsedPercent), FormatPercent(m.RAMFreePercent)),
		AverageCPU: fmt.Sprintf("%s (%s)", FormatPercent(m.AverageCPU), m.CPUBand),
		ServerCPU:  Unmeasurable,
		ServerRAM:  Unmeasurable,
		ServerDisk: Unmeasurable,
	}
	if v, ok := m.ServerCPU.Get(); ok {
		d.ServerCPU = FormatPercent(v)
	}
	if v, ok := m.ServerRAM.Get(); ok {
		d.ServerRAM = FormatBytes(v)
	}
	if v, ok := m.ServerDisk.Get(); ok {
		d.ServerDisk = FormatBytes(v)
	}
	return d
}
