// Package route generates closed waypoint loops for active agents.
package route

import (
	"math"
	"math/rand"

	"fleetsim/internal/telemetry"
)

// Pattern selects one of the route generation variants. The set is closed:
// adding a pattern means adding a case to Generate.
type Pattern int

const (
	PatrolRect Pattern = iota
	Star
	Loop
	FigureEight
	Zigzag
	RandomWalk
	numPatterns
)

var patternNames = map[Pattern]string{
	PatrolRect:  "patrol_rect",
	Star:        "star",
	Loop:        "loop",
	FigureEight: "figure_eight",
	Zigzag:      "zigzag",
	RandomWalk:  "random_walk",
}

func (p Pattern) String() string {
	if n, ok := patternNames[p]; ok {
		return n
	}
	return "unknown"
}

// Patterns returns all defined patterns in order.
func Patterns() []Pattern {
	ps := make([]Pattern, 0, int(numPatterns))
	for p := Pattern(0); p < numPatterns; p++ {
		ps = append(ps, p)
	}
	return ps
}

// RandomPattern picks one pattern uniformly.
func RandomPattern(rng *rand.Rand) Pattern {
	return Pattern(rng.Intn(int(numPatterns)))
}

// Generate builds a closed, non-empty waypoint loop around center. extentM is
// the nominal half-size of the figure in meters; every variant jitters it.
// Pure in its inputs: same rng stream, same route.
func Generate(p Pattern, center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	if extentM <= 0 {
		extentM = 1000
	}
	switch p {
	case PatrolRect:
		return patrolRect(center, extentM, rng)
	case Star:
		return star(center, extentM, rng)
	case Loop:
		return loop(center, extentM, rng)
	case FigureEight:
		return figureEight(center, extentM, rng)
	case Zigzag:
		return zigzag(center, extentM, rng)
	default:
		return randomWalk(center, extentM, rng)
	}
}

// patrolRect returns the four corners of a jittered rectangle.
func patrolRect(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	w := extentM * (0.6 + rng.Float64()*0.8)
	h := extentM * (0.6 + rng.Float64()*0.8)
	return []telemetry.Position{
		offset(center, -h, -w),
		offset(center, -h, w),
		offset(center, h, w),
		offset(center, h, -w),
	}
}

// star scatters points around the center at jittered angles and radii so the
// path repeatedly crosses the middle.
func star(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	n := 5 + rng.Intn(4)
	pts := make([]telemetry.Position, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i)/float64(n)*2*math.Pi + rng.Float64()*0.5
		r := extentM * (0.5 + rng.Float64()*0.5)
		pts = append(pts, offset(center, r*math.Cos(angle), r*math.Sin(angle)))
	}
	// Interleave opposite halves so consecutive legs cross the center.
	out := make([]telemetry.Position, 0, n)
	half := n / 2
	for i := 0; i < half; i++ {
		out = append(out, pts[i], pts[i+half])
	}
	if n%2 == 1 {
		out = append(out, pts[n-1])
	}
	return out
}

// loop places evenly spaced points on a circle, direction chosen at random.
func loop(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	n := 8 + rng.Intn(5)
	r := extentM * (0.7 + rng.Float64()*0.6)
	dir := 1.0
	if rng.Intn(2) == 0 {
		dir = -1.0
	}
	pts := make([]telemetry.Position, 0, n)
	for i := 0; i < n; i++ {
		angle := dir * float64(i) / float64(n) * 2 * math.Pi
		pts = append(pts, offset(center, r*math.Cos(angle), r*math.Sin(angle)))
	}
	return pts
}

// figureEight traces two adjoining circular lobes east and west of the center.
func figureEight(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	perLobe := 6 + rng.Intn(3)
	r := extentM * (0.4 + rng.Float64()*0.3)
	east := offset(center, 0, r)
	west := offset(center, 0, -r)
	pts := make([]telemetry.Position, 0, perLobe*2)
	for i := 0; i < perLobe; i++ {
		angle := float64(i) / float64(perLobe) * 2 * math.Pi
		pts = append(pts, offset(east, r*math.Sin(angle), r*math.Cos(angle)))
	}
	for i := 0; i < perLobe; i++ {
		angle := float64(i) / float64(perLobe) * 2 * math.Pi
		pts = append(pts, offset(west, r*math.Sin(angle), -r*math.Cos(angle)))
	}
	return pts
}

// zigzag sweeps north to south in alternating east/west legs.
func zigzag(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	legs := 4 + rng.Intn(3)
	w := extentM * (0.7 + rng.Float64()*0.6)
	h := extentM * (0.7 + rng.Float64()*0.6)
	pts := make([]telemetry.Position, 0, legs*2)
	for i := 0; i < legs; i++ {
		north := h - 2*h*float64(i)/float64(legs-1)
		if i%2 == 0 {
			pts = append(pts, offset(center, north, -w), offset(center, north, w))
		} else {
			pts = append(pts, offset(center, north, w), offset(center, north, -w))
		}
	}
	return pts
}

// randomWalk takes n unconstrained steps from the center.
func randomWalk(center telemetry.Position, extentM float64, rng *rand.Rand) []telemetry.Position {
	n := 6 + rng.Intn(6)
	pts := make([]telemetry.Position, 0, n)
	cur := center
	for i := 0; i < n; i++ {
		angle := rng.Float64() * 2 * math.Pi
		step := extentM * (0.2 + rng.Float64()*0.5)
		cur = offset(cur, step*math.Cos(angle), step*math.Sin(angle))
		pts = append(pts, cur)
	}
	return pts
}

// offset shifts a position by meters north and east using the flat-degree
// approximation; route shapes do not need geodesic precision.
func offset(p telemetry.Position, northM, eastM float64) telemetry.Position {
	dLat := northM / 111000
	dLon := eastM / (111000 * math.Cos(p.Lat*math.Pi/180))
	return telemetry.Position{Lat: p.Lat + dLat, Lon: p.Lon + dLon, Alt: p.Alt}
}
