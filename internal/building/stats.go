package building

import (
	"log/slog"
	"math"

	"github.com/talgya/lifeon/internal/catalog"
)

// Derived stats are computed on every call from the current level and the
// modifier bundle. Without level data every stat is zero.

func (b *Building) stat(s catalog.Stat) float64 {
	lvl := b.levelDef()
	if lvl == nil {
		slog.Debug("no level data for stat", "building", b.id, "stat", s)
		return 0
	}
	return b.mods.Get(s).Evaluate(lvl.Value(s))
}

// ExpToNext returns the experience needed for the next level.
func (b *Building) ExpToNext() int { return int(b.stat(catalog.StatExpToNext)) }

// MaxPopulation returns the population cap.
func (b *Building) MaxPopulation() int { return int(b.stat(catalog.StatMaxPopulation)) }

// MaxJobs returns the number of job positions.
func (b *Building) MaxJobs() int { return int(b.stat(catalog.StatMaxJobs)) }

// MaxStorageCapacity returns the storage this building contributes.
func (b *Building) MaxStorageCapacity() int { return int(b.stat(catalog.StatMaxStorage)) }

// TransportRadius returns the link range for transport lines.
func (b *Building) TransportRadius() float64 { return b.stat(catalog.StatTransportRadius) }

// DistributeRadius returns the range supplies are distributed over.
func (b *Building) DistributeRadius() float64 { return b.stat(catalog.StatDistributeRadius) }

// MaxTraffic returns the transport throughput.
func (b *Building) MaxTraffic() float64 { return b.stat(catalog.StatMaxTraffic) }

// JobAttractiveness returns how strongly the building draws workers.
func (b *Building) JobAttractiveness() float64 { return b.stat(catalog.StatJobAttractiveness) }

// TransportResistance returns the durability a transfer through this
// building costs, rounded and floored at zero.
func (b *Building) TransportResistance() int {
	return max(0, int(math.Round(b.stat(catalog.StatTransportResistance))))
}

// SurplusTraffic returns unused throughput.
func (b *Building) SurplusTraffic() float64 { return b.MaxTraffic() - b.traffic }

// CanTransport reports whether the building takes part in transport.
func (b *Building) CanTransport() bool { return b.MaxTraffic() > 0 }

// Stats is a read-only view of every derived stat.
type Stats struct {
	ExpToNext           int     `json:"exp_to_next"`
	MaxPopulation       int     `json:"max_population"`
	MaxJobs             int     `json:"max_jobs"`
	MaxStorageCapacity  int     `json:"max_storage_capacity"`
	TransportRadius     float64 `json:"transport_radius"`
	DistributeRadius    float64 `json:"distribute_radius"`
	MaxTraffic          float64 `json:"max_traffic"`
	TransportResistance int     `json:"transport_resistance"`
	JobAttractiveness   float64 `json:"job_attractiveness"`
}

// Stats computes every derived stat at once.
func (b *Building) Stats() Stats {
	return Stats{
		ExpToNext:           b.ExpToNext(),
		MaxPopulation:       b.MaxPopulation(),
		MaxJobs:             b.MaxJobs(),
		MaxStorageCapacity:  b.MaxStorageCapacity(),
		TransportRadius:     b.TransportRadius(),
		DistributeRadius:    b.DistributeRadius(),
		MaxTraffic:          b.MaxTraffic(),
		TransportResistance: b.TransportResistance(),
		JobAttractiveness:   b.JobAttractiveness(),
	}
}
