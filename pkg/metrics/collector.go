package metrics

import (
	"time"

	"github.com/ldmsys/ldm/pkg/types"
)

// HierarchyCounts is a point-in-time snapshot a repository implementation
// produces for the collector; computing it is cheap (bucket counts) so it
// can run on every tick without touching the Raft apply path.
type HierarchyCounts struct {
	Platforms int
	Projects  int
	Files     map[types.FileFormat]int
	Rows      map[types.RowStatus]int
	Trash     map[types.TrashItemType]int
}

// RaftStats mirrors the subset of hashicorp/raft.Stats the collector reads.
type RaftStats struct {
	IsLeader     bool
	Peers        int
	LastLogIndex uint64
	AppliedIndex uint64
}

// Source is implemented by whatever backend the server is running
// (authoritative or local); the collector doesn't care which.
type Source interface {
	HierarchyCounts() (HierarchyCounts, error)
	RaftStats() (*RaftStats, bool)
}

// Collector periodically samples a Source and updates the package gauges.
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectHierarchyMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectHierarchyMetrics() {
	counts, err := c.source.HierarchyCounts()
	if err != nil {
		return
	}

	PlatformsTotal.Set(float64(counts.Platforms))
	ProjectsTotal.Set(float64(counts.Projects))

	for format, n := range counts.Files {
		FilesTotal.WithLabelValues(string(format)).Set(float64(n))
	}
	for status, n := range counts.Rows {
		RowsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
	for itemType, n := range counts.Trash {
		TrashItemsTotal.WithLabelValues(string(itemType)).Set(float64(n))
	}
}

func (c *Collector) collectRaftMetrics() {
	stats, ok := c.source.RaftStats()
	if !ok {
		return
	}

	if stats.IsLeader {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	RaftPeers.Set(float64(stats.Peers))
	RaftLogIndex.Set(float64(stats.LastLogIndex))
	RaftAppliedIndex.Set(float64(stats.AppliedIndex))
}
