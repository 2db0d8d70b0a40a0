package optimizer

import (
	"runtime"
	"sync"

	"github.com/alitto/pond"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// ObjectRaysFunc supplies the ray bundle and initial location for a single
// object; the run controller implements it against the catalog.
type ObjectRaysFunc func(objectID int64) (rays []Ray, initial model.WorldPoint)

// TriangulateSpan runs per-object triangulation across every object in a
// span's scope, concurrently (spec.md §5 "could be parallelized per-
// object... with a final single-threaded commit"). The returned map is
// keyed by object id; callers commit results into the catalog on the
// single controller thread.
func TriangulateSpan(cfg Config, objectIDs []int64, rays ObjectRaysFunc) map[int64]TriangulationResult {
	workers := cfg.TriangulationWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := pond.New(workers, 0, pond.MinWorkers(workers))

	results := make(map[int64]TriangulationResult, len(objectIDs))
	var mu sync.Mutex

	for _, id := range objectIDs {
		objectID := id
		pool.Submit(func() {
			objRays, initial := rays(objectID)
			res := Triangulate(objRays, initial)
			mu.Lock()
			results[objectID] = res
			mu.Unlock()
		})
	}

	pool.StopAndWait()
	return results
}
