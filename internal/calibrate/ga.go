package calibrate

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/weights"
)

// Fitness scores a candidate weight vector; higher is better
type Fitness func(weights.Weights) float64

// GAConfig holds the genetic optimizer parameters
type GAConfig struct {
	Population    int     `yaml:"population"`     // candidates per generation (default: 40)
	Generations   int     `yaml:"generations"`    // (default: 25)
	EliteFraction float64 `yaml:"elite_fraction"` // survivors per generation (default: 0.2)
	MutationRate  float64 `yaml:"mutation_rate"`  // per-gene mutation probability (default: 0.1)
	MutationSigma float64 `yaml:"mutation_sigma"` // gaussian mutation width (default: 0.1)
	Seed          int64   `yaml:"seed"`
}

// DefaultGAConfig returns the production optimizer parameters
func DefaultGAConfig() GAConfig {
	return GAConfig{
		Population:    40,
		Generations:   25,
		EliteFraction: 0.2,
		MutationRate:  0.1,
		MutationSigma: 0.1,
		Seed:          1,
	}
}

// GAResult is the optimizer outcome
type GAResult struct {
	Best        weights.Weights `json:"best"`
	BestFitness float64         `json:"best_fitness"`
	History     []float64       `json:"history"` // best fitness per generation
}

// OptimizeWeights evolves the base weight vector against fitness. The run
// is deterministic for a given seed: genes are always visited in sorted
// name order. The base vector is seeded into the initial population, so
// the result never scores worse than the input.
func (c GAConfig) OptimizeWeights(ctx context.Context, base weights.Weights, fitness Fitness) (*GAResult, error) {
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("invalid base weights: %w", err)
	}
	if fitness == nil {
		return nil, fmt.Errorf("nil fitness function")
	}
	if c.Population < 4 {
		c.Population = 4
	}
	if c.Generations < 1 {
		c.Generations = 1
	}

	rng := rand.New(rand.NewSource(c.Seed))
	names := base.Names()

	pop := make([]weights.Weights, c.Population)
	pop[0] = base.Clone()
	for i := 1; i < c.Population; i++ {
		pop[i] = c.jitter(rng, base, names)
	}

	elites := int(float64(c.Population) * c.EliteFraction)
	if elites < 2 {
		elites = 2
	}

	result := &GAResult{History: make([]float64, 0, c.Generations)}
	for gen := 0; gen < c.Generations; gen++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("optimization cancelled at generation %d: %w", gen, ctx.Err())
		default:
		}

		scored := make([]scoredCandidate, len(pop))
		for i, w := range pop {
			scored[i] = scoredCandidate{weights: w, fitness: fitness(w)}
		}
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].fitness > scored[j].fitness })

		if result.Best == nil || scored[0].fitness > result.BestFitness {
			result.Best = scored[0].weights.Clone()
			result.BestFitness = scored[0].fitness
		}
		result.History = append(result.History, scored[0].fitness)

		next := make([]weights.Weights, 0, c.Population)
		for i := 0; i < elites; i++ {
			next = append(next, scored[i].weights)
		}
		for len(next) < c.Population {
			a := scored[rng.Intn(elites)].weights
			b := scored[rng.Intn(elites)].weights
			next = append(next, c.mutate(rng, crossover(rng, a, b, names), names))
		}
		pop = next
	}

	log.Info().
		Int("generations", c.Generations).
		Float64("best_fitness", result.BestFitness).
		Msg("weight optimization finished")
	return result, nil
}

type scoredCandidate struct {
	weights weights.Weights
	fitness float64
}

// jitter perturbs every gene of base and renormalizes
func (c GAConfig) jitter(rng *rand.Rand, base weights.Weights, names []string) weights.Weights {
	out := base.Clone()
	for _, name := range names {
		out[name] += rng.NormFloat64() * c.MutationSigma
		if out[name] < 0 {
			out[name] = 0
		}
	}
	return out.Normalize()
}

// crossover picks each gene uniformly from either parent
func crossover(rng *rand.Rand, a, b weights.Weights, names []string) weights.Weights {
	child := make(weights.Weights, len(names))
	for _, name := range names {
		if rng.Float64() < 0.5 {
			child[name] = a[name]
		} else {
			child[name] = b[name]
		}
	}
	return child.Normalize()
}

// mutate applies gaussian noise to genes at MutationRate and renormalizes
func (c GAConfig) mutate(rng *rand.Rand, w weights.Weights, names []string) weights.Weights {
	for _, name := range names {
		if rng.Float64() < c.MutationRate {
			w[name] += rng.NormFloat64() * c.MutationSigma
			if w[name] < 0 {
				w[name] = 0
			}
		}
	}
	return w.Normalize()
}
