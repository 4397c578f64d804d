// Package forest implements a random-forest regressor: an ensemble of
// CART regression trees grown on bootstrap samples. The production model
// uses 200 trees and a fixed seed so that retraining on the same data
// reproduces the same forest bit for bit.
package forest

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"
)

// Config controls forest fitting.
type Config struct {
	Trees    int   // number of trees; 0 means 200
	Seed     int64 // RNG seed for bootstrap sampling
	MinLeaf  int   // minimum samples per leaf; 0 means 1
	MaxDepth int   // 0 means unlimited
	Workers  int   // parallel tree fits; 0 means GOMAXPROCS
}

// Forest is a fitted ensemble. Exported fields exist for gob
// serialization; a fitted forest is never mutated.
type Forest struct {
	Trees       []*Tree
	NumFeatures int

	// Importances holds normalized impurity-decrease feature
	// importances averaged over trees.
	Importances []float64
}

// Fit trains a forest on the given matrix and targets. Tree fitting is
// parallel across a worker pool, but the per-tree seeds are drawn
// sequentially up front so the result does not depend on scheduling.
func Fit(x [][]float64, y []float64, cfg Config) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("forest: empty or misaligned training data")
	}
	nFeatures := len(x[0])
	for _, row := range x {
		if len(row) != nFeatures {
			return nil, errors.New("forest: ragged feature matrix")
		}
	}

	nTrees := cfg.Trees
	if nTrees <= 0 {
		nTrees = 200
	}
	minLeaf := cfg.MinLeaf
	if minLeaf <= 0 {
		minLeaf = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	root := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, nTrees)
	for i := range seeds {
		seeds[i] = root.Int63()
	}

	f := &Forest{
		Trees:       make([]*Tree, nTrees),
		NumFeatures: nFeatures,
		Importances: make([]float64, nFeatures),
	}
	perTree := make([][]float64, nTrees)

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(seeds[i]))
				f.Trees[i], perTree[i] = fitTree(x, y, minLeaf, cfg.MaxDepth, rng)
			}
		}()
	}
	for i := 0; i < nTrees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var total float64
	for _, imp := range perTree {
		for j, v := range imp {
			f.Importances[j] += v
			total += v
		}
	}
	if total > 0 {
		for j := range f.Importances {
			f.Importances[j] /= total
		}
	}

	return f, nil
}

// Predict averages the tree predictions for one sample.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}
