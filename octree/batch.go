package octree

import (
	"context"
	"runtime"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"

	"github.com/skeletex/cogs/spatialmath"
)

// Query is a region to search for points, either a sphere or a box.
type Query struct {
	Center r3.Vector
	Radius float64
	Box    spatialmath.Box
	IsBox  bool
}

// SphereQuery returns a query for points within radius of center.
func SphereQuery(center r3.Vector, radius float64) Query {
	return Query{Center: center, Radius: radius}
}

// BoxQuery returns a query for points inside the box.
func BoxQuery(box spatialmath.Box) Query {
	return Query{Box: box, IsBox: true}
}

func (o *Octree) run(q Query) []int {
	if q.IsBox {
		return o.FindInBox(q.Box)
	}
	return o.Find(q.Center, q.Radius)
}

// FindAll answers the queries concurrently. The tree is read only while queries run, so it must
// not be rebuilt until FindAll returns. Results are in query order.
func (o *Octree) FindAll(ctx context.Context, queries []Query) ([][]int, error) {
	results := make([][]int, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = o.run(q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PickAll picks a point for every ray concurrently using the automatic tolerance. Results are in
// ray order, -1 where nothing was hit.
func (o *Octree) PickAll(ctx context.Context, rays []spatialmath.Ray) ([]int, error) {
	picked := make([]int, len(rays))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ray := range rays {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			picked[i] = o.IntersectedPoint(ray)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return picked, nil
}
