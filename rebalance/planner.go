// Package rebalance plans cross-station battery moves. The planner is a
// pure function over a snapshot of per-station ready counts so it can be
// tested without a database; execution lives in the services package.
package rebalance

import (
	"math"
	"sort"
)

// StationCount is one station's snapshot entry.
type StationCount struct {
	StationID int
	Available int
	Latitude  float64
	Longitude float64
}

// Options tune the balancing pass.
type Options struct {
	// TargetPerStation overrides the computed floor(total/stations) target.
	TargetPerStation *int
	// MaxPerPair caps units moved between one (from, to) pair per step. Zero means no cap.
	MaxPerPair int
	// PreferNearest matches each surplus station to its geographically
	// closest deficit station instead of the deepest deficit.
	PreferNearest bool
}

// Move ships Quantity batteries from one station to another.
type Move struct {
	FromStationID int `json:"from_station_id"`
	ToStationID   int `json:"to_station_id"`
	Quantity      int `json:"quantity"`
}

// Plan is the ordered move list plus the predicted post-plan ready counts.
type Plan struct {
	Target    int         `json:"target"`
	Moves     []Move      `json:"moves"`
	Predicted map[int]int `json:"predicted"`
}

type bucket struct {
	id        int
	remaining int
	lat, lon  float64
}

// BuildPlan runs the greedy surplus/deficit matcher: repeatedly pair the
// largest surplus with a deficit station, move what both sides and the cap
// allow, requeue remainders, stop when either side empties. Not globally
// optimal; the predicted counts tell the operator what the plan achieves.
func BuildPlan(stations []StationCount, opts Options) Plan {
	plan := Plan{Predicted: make(map[int]int, len(stations))}
	if len(stations) == 0 {
		return plan
	}

	total := 0
	for _, s := range stations {
		total += s.Available
		plan.Predicted[s.StationID] = s.Available
	}

	target := total / len(stations)
	if opts.TargetPerStation != nil {
		target = *opts.TargetPerStation
	}
	plan.Target = target

	var surplus, deficit []bucket
	for _, s := range stations {
		switch {
		case s.Available > target:
			surplus = append(surplus, bucket{s.StationID, s.Available - target, s.Latitude, s.Longitude})
		case s.Available < target:
			deficit = append(deficit, bucket{s.StationID, target - s.Available, s.Latitude, s.Longitude})
		}
	}

	for len(surplus) > 0 && len(deficit) > 0 {
		sort.Slice(surplus, func(i, j int) bool { return surplus[i].remaining > surplus[j].remaining })
		src := &surplus[0]

		di := 0
		if opts.PreferNearest {
			di = nearest(*src, deficit)
		} else {
			sort.Slice(deficit, func(i, j int) bool { return deficit[i].remaining > deficit[j].remaining })
		}
		dst := &deficit[di]

		qty := src.remaining
		if dst.remaining < qty {
			qty = dst.remaining
		}
		if opts.MaxPerPair > 0 && qty > opts.MaxPerPair {
			qty = opts.MaxPerPair
		}

		plan.Moves = append(plan.Moves, Move{FromStationID: src.id, ToStationID: dst.id, Quantity: qty})
		plan.Predicted[src.id] -= qty
		plan.Predicted[dst.id] += qty
		src.remaining -= qty
		dst.remaining -= qty

		surplus = compact(surplus)
		deficit = compact(deficit)
	}

	return plan
}

func compact(bs []bucket) []bucket {
	out := bs[:0]
	for _, b := range bs {
		if b.remaining > 0 {
			out = append(out, b)
		}
	}
	return out
}

// nearest picks the deficit bucket closest to src by squared planar
// distance; coordinates are close enough together that great-circle
// precision does not change the ordering.
func nearest(src bucket, deficit []bucket) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, d := range deficit {
		dx := src.lat - d.lat
		dy := src.lon - d.lon
		dist := dx*dx + dy*dy
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}
