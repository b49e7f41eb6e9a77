package tensor

import (
	"runtime"
	"sync"
)

// parallelRows is the row count below which MatVec stays on the calling
// goroutine.
const parallelRows = 256

// MatVec computes dst = w * x where w is a matrix and x is a vector.
// Large matrices are split into row ranges and computed in parallel.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}

	workers := min(runtime.GOMAXPROCS(0), w.R)
	if workers <= 1 || w.R < parallelRows {
		matVecRange(dst, w, x, 0, w.R)
		return
	}

	chunk := (w.R + workers - 1) / workers
	var wg sync.WaitGroup
	for i := range workers {
		rs := i * chunk
		re := min(rs+chunk, w.R)
		if rs >= re {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			matVecRange(dst, w, x, rs, re)
		}()
	}
	wg.Wait()
}

// MatVecBias computes dst = w * x + bias. A nil bias is treated as zero.
func MatVecBias(dst []float32, w *Mat, x, bias []float32) {
	MatVec(dst, w, x)
	if bias != nil {
		Add(dst[:w.R], bias[:w.R])
	}
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	x = x[:w.C]
	for i := rs; i < re; i++ {
		dst[i] = Dot(w.Row(i), x)
	}
}
