package rbm

import (
	"sync"
)

var mapPool = make(map[int]map[int]*sync.Pool)
var mapPoolMu sync.Mutex

// borrowMaps returns m scratch vectors of n float32s each, reusing
// previously returned ones when possible. Contents are not zeroed.
func borrowMaps(m, n int) [][]float32 {
	mapPoolMu.Lock()
	defer mapPoolMu.Unlock()
	if d, ok := mapPool[m]; ok {
		if d2, ok := d[n]; ok {
			return d2.Get().([][]float32)
		}
	}
	retVal := make([][]float32, m)
	for i := range retVal {
		retVal[i] = make([]float32, n)
	}
	return retVal
}

// returnMaps gives scratch vectors back to the pool.
func returnMaps(m, n int, maps [][]float32) {
	mapPoolMu.Lock()
	defer mapPoolMu.Unlock()
	if _, ok := mapPool[m]; !ok {
		mapPool[m] = make(map[int]*sync.Pool)
	}
	if _, ok := mapPool[m][n]; !ok {
		mapPool[m][n] = &sync.Pool{
			New: func() interface{} {
				retVal := make([][]float32, m)
				for i := range retVal {
					retVal[i] = make([]float32, n)
				}
				return retVal
			},
		}
	}
	mapPool[m][n].Put(maps)
}
