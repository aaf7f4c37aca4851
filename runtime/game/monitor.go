package game

import (
	"context"
	"time"

	"okey/common/log"
	"okey/core/domain/entity"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoadReporter discovery.Registry 实现
type LoadReporter interface {
	UpdateLoad(load float64) error
}

// Monitor 监控器
// 定期收集房间数、玩家数和主机负载，上报给 etcd 供网关挑选节点
type Monitor struct {
	svc            *GameService
	reporter       LoadReporter
	updateInterval time.Duration
	stopCh         chan struct{}
}

func NewMonitor(svc *GameService, reporter LoadReporter, updateInterval time.Duration) *Monitor {
	if updateInterval <= 0 {
		updateInterval = 5 * time.Second
	}
	return &Monitor{
		svc:            svc,
		reporter:       reporter,
		updateInterval: updateInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start 阻塞运行，直到 ctx 取消或 Stop
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.updateInterval)
	defer ticker.Stop()

	m.reportLoad(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-m.stopCh:
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-ticker.C:
			m.reportLoad(ctx)
		}
	}
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) reportLoad(ctx context.Context) {
	info := m.CollectLoadInfo(ctx)
	load := info.CalculateLoad()
	if m.reporter == nil {
		return
	}
	if err := m.reporter.UpdateLoad(load); err != nil {
		log.Error("Monitor 上报负载信息失败: %v", err)
		return
	}
	log.Debug("Monitor 上报负载信息成功: Load=%.2f, Games=%d, Players=%d, CPU=%.2f%%, Mem=%.2f%%",
		load, info.GameCount, info.PlayerCount, info.CPUUsage, info.MemUsage)
}

// CollectLoadInfo 采集失败的项按 0 计
func (m *Monitor) CollectLoadInfo(ctx context.Context) *LoadInfo {
	info := &LoadInfo{}
	if states, err := m.svc.ListRooms(ctx); err != nil {
		log.Warn("Monitor 统计房间失败: %v", err)
	} else {
		for _, s := range states {
			if s.Phase == entity.PhasePlaying {
				info.GameCount++
			}
			for _, p := range s.Players {
				if !p.IsBot {
					info.PlayerCount++
				}
			}
		}
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		info.CPUUsage = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemUsage = vm.UsedPercent
	}
	return info
}
