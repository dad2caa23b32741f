package optimizer

import (
	"sort"
)

// Population is the single owner of ranking state. Results are merged in
// during the single-threaded ranking phase, so no locking is needed on
// the candidate slice itself.
type Population struct {
	candidates []*Candidate // current generation plus retained elites, ranked
	generation int
	best       *Candidate // best-so-far across all generations seen
}

func NewPopulation() *Population {
	return &Population{}
}

// Ingest merges evaluation results into the population and recomputes the
// ranking. Failed evaluations rank with score zero and are flagged so
// observers can tell them apart from genuinely low scores. Returns the
// ranked population.
func (p *Population) Ingest(results []EvaluationResult) []*Candidate {
	for _, r := range results {
		c := r.Candidate
		if r.Err != nil {
			c.Score = 0
			c.Scored = true
			c.FailedEval = true
		} else {
			c.Score = r.Score
			c.Scored = true
			c.FailedEval = false
		}
		p.candidates = append(p.candidates, c)
		if c.Generation > p.generation {
			p.generation = c.Generation
		}
		p.updateBest(c)
	}

	p.rank()
	return p.candidates
}

// rank sorts descending by score; ties go to the earlier generation, so
// older already-validated candidates are preferred over newer ties.
func (p *Population) rank() {
	sort.SliceStable(p.candidates, func(i, j int) bool {
		a, b := p.candidates[i], p.candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Generation < b.Generation
	})
}

// updateBest keeps best-so-far monotonically non-decreasing. Ties are
// broken by the earliest generation, so the incumbent only loses to a
// strictly better score.
func (p *Population) updateBest(c *Candidate) {
	if !c.Scored || c.FailedEval {
		if p.best == nil {
			p.best = c
		}
		return
	}
	if p.best == nil || !p.best.Scored || p.best.FailedEval || c.Score > p.best.Score {
		p.best = c
	}
}

// TopK returns the k best candidates of the current ranking. Candidates
// that could not be scored are excluded from the elite set.
func (p *Population) TopK(k int) []*Candidate {
	elites := make([]*Candidate, 0, k)
	for _, c := range p.candidates {
		if len(elites) == k {
			break
		}
		if c.FailedEval {
			continue
		}
		elites = append(elites, c)
	}
	return elites
}

// BestSoFar returns the max-score candidate across all generations seen.
func (p *Population) BestSoFar() *Candidate {
	return p.best
}

// Generation returns the highest generation ingested so far.
func (p *Population) Generation() int {
	return p.generation
}

// Candidates returns the current ranked population.
func (p *Population) Candidates() []*Candidate {
	return p.candidates
}

// Retain drops everything but the given candidates at a generation
// boundary. The carried candidates keep their trusted scores.
func (p *Population) Retain(elites []*Candidate) {
	p.candidates = append([]*Candidate(nil), elites...)
}

// ShouldTerminate reports whether the run is done: the score threshold has
// been met, or the iteration budget is exhausted.
func (p *Population) ShouldTerminate(cfg *Config) bool {
	if p.best != nil && p.best.Scored && !p.best.FailedEval && p.best.Score >= cfg.Threshold {
		return true
	}
	return p.generation >= cfg.NumIters
}
