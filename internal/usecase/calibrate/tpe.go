package calibrate

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// TPE defaults.
const (
	DefaultStartupTrials = 10
	DefaultCandidates    = 24
	DefaultGamma         = 0.25
)

// Source tells whether a proposal was drawn uniformly or from the density model.
type Source string

const (
	// SourceStartup marks uniform warm-up proposals.
	SourceStartup Source = "startup"
	// SourceTPE marks Parzen-estimator guided proposals.
	SourceTPE Source = "tpe"
	// SourceBaseline marks an explicitly enqueued point.
	SourceBaseline Source = "baseline"
)

type observation struct {
	x []float64
	y float64
}

// TPE is a sequential model-based optimizer (tree-structured Parzen estimator,
// one independent estimator per dimension). It maximizes the objective.
// Not safe for concurrent use.
type TPE struct {
	space      weights.SearchSpace
	rng        *rand.Rand
	startup    int
	candidates int
	gamma      float64
	obs        []observation
}

// NewTPE creates an optimizer over space seeded deterministically.
func NewTPE(space weights.SearchSpace, seed uint64, startup, candidates int, gamma float64) *TPE {
	if startup < 1 {
		startup = DefaultStartupTrials
	}
	if candidates < 1 {
		candidates = DefaultCandidates
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = DefaultGamma
	}
	return &TPE{
		space:      space,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		startup:    startup,
		candidates: candidates,
		gamma:      gamma,
	}
}

// Suggest proposes the next point and where it came from.
func (t *TPE) Suggest() ([]float64, Source) {
	x := make([]float64, len(t.space))
	if len(t.obs) < t.startup {
		for d, b := range t.space {
			x[d] = b.Low + t.rng.Float64()*(b.High-b.Low)
		}
		return x, SourceStartup
	}

	good, bad := t.split()
	for d, b := range t.space {
		l := newParzen(column(good, d), b)
		g := newParzen(column(bad, d), b)
		best, bestScore := l.sample(t.rng), math.Inf(-1)
		for range t.candidates {
			c := l.sample(t.rng)
			s := l.logPDF(c) - g.logPDF(c)
			if s > bestScore {
				best, bestScore = c, s
			}
		}
		x[d] = best
	}
	return x, SourceTPE
}

// Observe records the objective value of x.
func (t *TPE) Observe(x []float64, y float64) {
	t.obs = append(t.obs, observation{x: append([]float64(nil), x...), y: y})
}

// split partitions observations into the top gamma fraction and the rest.
// Ties keep trial order.
func (t *TPE) split() (good, bad []observation) {
	sorted := append([]observation(nil), t.obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].y > sorted[j].y })
	n := int(math.Ceil(t.gamma * float64(len(sorted))))
	n = max(1, min(n, len(sorted)-1))
	return sorted[:n], sorted[n:]
}

func column(obs []observation, d int) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.x[d]
	}
	return out
}

// parzen is an equally weighted mixture of normals truncated to [low, high],
// one per observation plus a broad prior component.
type parzen struct {
	low, high float64
	comps     []distuv.Normal
	mass      []float64 // probability mass of each component inside the bounds
}

func newParzen(points []float64, b weights.Bounds) *parzen {
	p := &parzen{low: b.Low, high: b.High}
	width := b.High - b.Low
	if width <= 0 {
		width = 1
	}
	prior := distuv.Normal{Mu: (b.Low + b.High) / 2, Sigma: width}
	p.add(prior)

	if len(points) == 0 {
		return p
	}
	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)
	minSigma := width / math.Min(100, float64(len(sorted)+1))
	for i, mu := range sorted {
		left := mu - b.Low
		if i > 0 {
			left = mu - sorted[i-1]
		}
		right := b.High - mu
		if i < len(sorted)-1 {
			right = sorted[i+1] - mu
		}
		sigma := math.Min(math.Max(math.Max(left, right), minSigma), width)
		p.add(distuv.Normal{Mu: mu, Sigma: sigma})
	}
	return p
}

func (p *parzen) add(n distuv.Normal) {
	m := n.CDF(p.high) - n.CDF(p.low)
	if m <= 0 {
		m = math.SmallestNonzeroFloat64
	}
	p.comps = append(p.comps, n)
	p.mass = append(p.mass, m)
}

func (p *parzen) logPDF(x float64) float64 {
	var sum float64
	for i, c := range p.comps {
		sum += c.Prob(x) / p.mass[i]
	}
	sum /= float64(len(p.comps))
	if sum <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sum)
}

// sample draws from a uniformly chosen component by rejection, clamping
// after too many misses.
func (p *parzen) sample(rng *rand.Rand) float64 {
	c := p.comps[rng.IntN(len(p.comps))]
	for range 64 {
		v := c.Mu + c.Sigma*rng.NormFloat64()
		if v >= p.low && v <= p.high {
			return v
		}
	}
	return math.Min(math.Max(c.Mu, p.low), p.high)
}
