package devhost

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"srvpanel/internal/telemetry"
	"srvpanel/internal/utils"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// StatsInterval is how often a snapshot is pushed on the stats stream.
const StatsInterval = time.Second

// SampleFunc produces one stats snapshot. running says whether server
// process figures should be included.
type SampleFunc func(ctx context.Context, running bool) (telemetry.Wire, error)

// Sampler reads host figures with gopsutil. The devhost process itself
// stands in for the game server process.
type Sampler struct {
	pid int32
}

func NewSampler() *Sampler {
	return &Sampler{pid: int32(os.Getpid())}
}

// Sample reports per-core CPU and RAM, plus server CPU, RSS and disk I/O
// while running. Server figures that cannot be read stay null.
func (s *Sampler) Sample(ctx context.Context, running bool) (telemetry.Wire, error) {
	var wire telemetry.Wire

	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return wire, err
	}
	wire.CPUUsages = perCore

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return wire, err
	}
	wire.RAMUsed = vm.Used
	wire.RAMFree = vm.Free

	if !running {
		return wire, nil
	}
	proc, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		return wire, nil
	}
	if pct, err := proc.PercentWithContext(ctx, 0); err == nil {
		wire.ServerCPUUsage = &pct
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		rss := info.RSS
		wire.ServerRAMUsage = &rss
	}
	if io, err := proc.IOCountersWithContext(ctx); err == nil && io != nil {
		total := io.ReadBytes + io.WriteBytes
		wire.ServerDiskUsage = &total
	}
	return wire, nil
}

// StartStatsLoop pushes a JSON snapshot to hub every StatsInterval until ctx
// ends.
func StartStatsLoop(ctx context.Context, hub *Hub, sample SampleFunc, running func() bool, logger *utils.Logger) {
	go func() {
		ticker := time.NewTicker(StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if hub.ClientCount() == 0 {
					continue
				}
				wire, err := sample(ctx, running())
				if err != nil {
					if logger != nil {
						logger.Writef("stats sample failed: %v", err)
					}
					continue
				}
				payload, err := json.Marshal(wire)
				if err != nil {
					continue
				}
				hub.Broadcast(payload)
			}
		}
	}()
}
