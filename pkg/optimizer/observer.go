package optimizer

import "github.com/XiaoConstantine/promptimal/pkg/core"

// CandidateSnapshot is the read-only view of one candidate exposed to
// progress observers.
type CandidateSnapshot struct {
	Text   string
	Score  *float64 // nil until evaluated
	Failed bool
}

// GenerationSnapshot is emitted once per generation after ranking. The
// observer has no write access into optimization state.
type GenerationSnapshot struct {
	Generation int
	Candidates []CandidateSnapshot
	BestPrompt string
	BestScore  float64
	Usage      core.TokenInfo
}

// ProgressObserver receives per-generation events, typically to drive a
// terminal UI. Implementations must not block for long: the controller
// calls them synchronously between phases.
type ProgressObserver interface {
	OnGeneration(snapshot GenerationSnapshot)
}

// ObserverFunc adapts a function to the ProgressObserver interface.
type ObserverFunc func(GenerationSnapshot)

func (f ObserverFunc) OnGeneration(snapshot GenerationSnapshot) {
	f(snapshot)
}

type noopObserver struct{}

func (noopObserver) OnGeneration(GenerationSnapshot) {}

func snapshotCandidate(c *Candidate) CandidateSnapshot {
	s := CandidateSnapshot{Text: c.Text, Failed: c.FailedEval}
	if c.Scored && !c.FailedEval {
		score := c.Score
		s.Score = &score
	}
	return s
}
