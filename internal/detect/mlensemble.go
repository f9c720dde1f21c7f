package detect

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/quantfuse/quantfuse/internal/indicators"
	"github.com/quantfuse/quantfuse/internal/market"
)

// MLConfig holds the ensemble model's training hyperparameters
type MLConfig struct {
	Horizon      int     `yaml:"horizon"`       // Bars ahead for the training label (default: 5)
	Epochs       int     `yaml:"epochs"`        // Gradient descent passes (default: 200)
	LearningRate float64 `yaml:"learning_rate"` // Step size (default: 0.1)
	L2           float64 `yaml:"l2"`            // Ridge penalty (default: 0.001)
}

// DefaultMLConfig returns the tuned training hyperparameters
func DefaultMLConfig() MLConfig {
	return MLConfig{Horizon: 5, Epochs: 200, LearningRate: 0.1, L2: 0.001}
}

const mlFeatureCount = 5

// MLEnsemble is a logistic-regression predictor over an indicator feature
// vector. The model trains lazily: the first call with sufficient history
// fits and caches the weights; later calls reuse them until Retrain.
// Training is deterministic (zero-initialized weights, fixed epoch count),
// so identical inputs always produce identical outputs.
type MLEnsemble struct {
	cfg MLConfig

	mu      sync.Mutex
	trained bool
	weights *mat.VecDense // mlFeatureCount + 1 (bias)
}

// NewMLEnsemble builds an untrained model
func NewMLEnsemble(cfg MLConfig) *MLEnsemble {
	return &MLEnsemble{cfg: cfg}
}

func (d *MLEnsemble) Name() string { return "ml_ensemble" }

func (d *MLEnsemble) MinBars() int { return 200 }

// Retrain drops the cached model; the next call with sufficient data refits
func (d *MLEnsemble) Retrain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trained = false
	d.weights = nil
}

func (d *MLEnsemble) Detect(_ context.Context, bars []market.Bar, _ MarketContext) (Result, error) {
	if len(bars) < d.MinBars() {
		return NeutralResult("insufficient bars"), nil
	}

	d.mu.Lock()
	if !d.trained {
		if err := d.train(bars); err != nil {
			d.mu.Unlock()
			return NeutralResult(fmt.Sprintf("training failed: %v", err)), nil
		}
		d.trained = true
	}
	w := d.weights
	d.mu.Unlock()

	feats, ok := featureVector(bars, len(bars)-1)
	if !ok {
		return NeutralResult("feature window unavailable"), nil
	}

	p := predict(w, feats)
	score := 2*p - 1

	// Confidence from distance to the decision boundary
	confidence := 0.2 + 0.7*math.Abs(score)

	return newResult(score, confidence, map[string]interface{}{
		"probability": p,
		"model":       "logistic",
	}), nil
}

// train fits logistic regression by full-batch gradient descent over
// labeled historical feature vectors.
func (d *MLEnsemble) train(bars []market.Bar) error {
	var X [][]float64
	var y []float64

	for i := 60; i < len(bars)-d.cfg.Horizon; i++ {
		feats, ok := featureVector(bars, i)
		if !ok {
			continue
		}
		if bars[i].Close == 0 {
			continue
		}
		future := bars[i+d.cfg.Horizon].Close
		label := 0.0
		if future > bars[i].Close {
			label = 1.0
		}
		X = append(X, feats)
		y = append(y, label)
	}
	if len(X) < 50 {
		return fmt.Errorf("only %d training samples", len(X))
	}

	w := mat.NewVecDense(mlFeatureCount+1, nil)
	grad := make([]float64, mlFeatureCount+1)

	for epoch := 0; epoch < d.cfg.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		for i, feats := range X {
			p := predict(w, feats)
			errTerm := p - y[i]
			grad[0] += errTerm
			for j, f := range feats {
				grad[j+1] += errTerm * f
			}
		}
		n := float64(len(X))
		for j := 0; j <= mlFeatureCount; j++ {
			g := grad[j] / n
			if j > 0 {
				g += d.cfg.L2 * w.AtVec(j)
			}
			w.SetVec(j, w.AtVec(j)-d.cfg.LearningRate*g)
		}
	}

	d.weights = w
	return nil
}

func predict(w *mat.VecDense, feats []float64) float64 {
	z := w.AtVec(0)
	for j, f := range feats {
		z += w.AtVec(j+1) * f
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// featureVector builds the model inputs at bar index i using only bars[:i+1]
func featureVector(bars []market.Bar, i int) ([]float64, bool) {
	if i < 59 {
		return nil, false
	}
	window := bars[:i+1]
	closes := market.Closes(window)

	rsiSeries := indicators.RSI(closes, 14)
	macd := indicators.MACD(closes, 12, 26, 9)
	if rsiSeries == nil || macd.Histogram == nil {
		return nil, false
	}

	price := closes[len(closes)-1]
	if price == 0 {
		return nil, false
	}

	return []float64{
		(rsiSeries[len(rsiSeries)-1] - 50.0) / 50.0,
		math.Tanh(macd.Histogram[len(macd.Histogram)-1] / price * 500),
		indicators.BollingerPosition(closes, 20, 2.0) - 0.5,
		math.Tanh(indicators.ROC(closes, 10) * 20),
		indicators.RealizedVolRatio(closes, 10, 50) - 1.0,
	}, true
}
