// Package testutil provides seeded data generators and exact ground truth
// for tests and benchmarks.
//
//	rng := testutil.NewRNG(42)
//	data := rng.UniformVectors(1000, 64)
//	truth := testutil.ExactTopK(sp, data, query, 10)
//	recall := testutil.Recall(truth, approx)
package testutil
