package registry

import (
	"context"
	"fmt"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/entities"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/fuzzy"
)

// Resolver matches candidate names against a Directory.
type Resolver struct {
	directory *Directory
	threshold float64
}

func NewResolver(directory *Directory, threshold float64) *Resolver {
	return &Resolver{directory: directory, threshold: threshold}
}

// Resolve returns the best-scoring company. An exact normalized match scores 1.0.
// Otherwise companies are ranked by token-set ratio, then by how many of the
// candidate's tokens they contain, then by sorted-token ratio; remaining ties go to
// the lowest CIK. Fuzzy scores stay below 1.
func (r *Resolver) Resolve(ctx context.Context, name string) (*domain.ResolvedCompany, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.directory.current()
	if snap == nil || len(snap.companies) == 0 {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "registry resolve", fmt.Errorf("directory not loaded"))
	}

	normalized := entities.Normalize(name)
	if normalized == "" {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "registry resolve", fmt.Errorf("empty name"))
	}

	if idx, ok := snap.exact[normalized]; ok {
		return resolved(snap.companies[idx], 1.0), nil
	}

	best, bestRank := -1, rank{}
	for i, candidate := range snap.normalized {
		rk := rankOf(normalized, candidate)
		if best < 0 || rk.beats(bestRank) {
			best, bestRank = i, rk
		}
	}
	bestScore := bestRank.score
	if best < 0 || bestScore < r.threshold {
		return nil, domain.WrapError(domain.ErrResolutionFailed, "registry resolve",
			fmt.Errorf("no match for %q above %.2f (best %.2f)", name, r.threshold, bestScore))
	}
	return resolved(snap.companies[best], bestScore), nil
}

type rank struct {
	score    float64
	coverage float64
	sorted   float64
}

func rankOf(name, candidate string) rank {
	return rank{
		score:    fuzzy.NameScore(name, candidate),
		coverage: fuzzy.Coverage(name, candidate),
		sorted:   fuzzy.SortedRatio(name, candidate),
	}
}

// beats is a strict comparison so earlier (lower CIK) entries keep ties.
func (r rank) beats(other rank) bool {
	if r.score != other.score {
		return r.score > other.score
	}
	if r.coverage != other.coverage {
		return r.coverage > other.coverage
	}
	return r.sorted > other.sorted
}

func resolved(c domain.RegistryCompany, score float64) *domain.ResolvedCompany {
	return &domain.ResolvedCompany{
		Identifier: c.CIK,
		Ticker:     c.Ticker,
		Name:       c.Name,
		Score:      score,
	}
}
