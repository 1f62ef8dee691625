package flat_test

import (
	"fmt"
	"testing"

	"github.com/hupe1980/annkit/index/flat"
	"github.com/hupe1980/annkit/space"
	"github.com/hupe1980/annkit/testutil"
)

func BenchmarkFlatAddPoint(b *testing.B) {
	for _, dim := range []int{128, 768} {
		b.Run(fmt.Sprintf("dim=%d", dim), func(b *testing.B) {
			f, err := flat.New[float32](func(o *flat.Options) { o.Dim = dim })
			if err != nil {
				b.Fatal(err)
			}
			vecs := testutil.NewRNG(0).UniformVectors(1024, dim)

			b.ReportAllocs()
			for i := 0; b.Loop(); i++ {
				if err := f.AddPoint(vecs[i%len(vecs)], int64(i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkFlatSearchKNN(b *testing.B) {
	for _, size := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			const dim = 128
			f, err := flat.New[float32](func(o *flat.Options) {
				o.Dim = dim
				o.Metric = space.IP
			})
			if err != nil {
				b.Fatal(err)
			}
			rng := testutil.NewRNG(0)
			for i, v := range rng.UniformVectors(size, dim) {
				if err := f.AddPoint(v, int64(i)); err != nil {
					b.Fatal(err)
				}
			}
			q := rng.UniformVectors(1, dim)[0]

			b.ReportAllocs()
			for b.Loop() {
				if _, err := f.SearchKNN(q, 10, nil, nil, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
