package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/skeletex/cogs/config"
	"github.com/skeletex/cogs/kdtree"
	"github.com/skeletex/cogs/logging"
	"github.com/skeletex/cogs/metrics"
	"github.com/skeletex/cogs/octree"
	"github.com/skeletex/cogs/pointcloud"
	"github.com/skeletex/cogs/selection"
	"github.com/skeletex/cogs/spatialmath"
)

// maxListedPoints caps the rows printed by commands listing points.
const maxListedPoints = 50

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// env is what every command needs: the config and a logger built from it.
type env struct {
	cfg    *config.Config
	logger logging.Logger
}

func newEnv(c *cli.Context) (*env, error) {
	cfg := config.Default()
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, nil); err != nil {
			return nil, err
		}
	}
	if c.Bool(flagDebug) {
		cfg.Log.Level = "debug"
	}
	if path := c.Path(flagLogFile); path != "" {
		cfg.Log.File = path
	}
	logger, err := logging.NewFromOptions("cogs", cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath != "" {
		logger.Debugw("using config", "path", cfg.ConfigFilePath)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) close(err error) error {
	//nolint:errcheck
	e.logger.Sync()
	return err
}

func (e *env) loadCloud(c *cli.Context) (*pointcloud.PointCloud, error) {
	if c.NArg() != 1 {
		return nil, errors.New("expected exactly one point cloud file argument")
	}
	return pointcloud.NewFromFile(c.Args().First(), e.logger)
}

func vectorFlag(c *cli.Context, name string) (r3.Vector, error) {
	v := c.Float64Slice(name)
	if len(v) != 3 {
		return r3.Vector{}, errors.Errorf("--%s needs three comma separated values, got %d", name, len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func boxFromFlags(c *cli.Context) (spatialmath.Box, error) {
	lo, errMin := vectorFlag(c, flagMin)
	hi, errMax := vectorFlag(c, flagMax)
	if err := multierr.Combine(errMin, errMax); err != nil {
		return spatialmath.Box{}, err
	}
	return spatialmath.NewBox(lo, hi), nil
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("%.4f, %.4f, %.4f", v.X, v.Y, v.Z)
}

func pointsTable(pc *pointcloud.PointCloud, indices []int) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Index", "Position"})
	for _, idx := range indices[:min(len(indices), maxListedPoints)] {
		t.AppendRow(table.Row{idx, formatVector(pc.Positions()[idx])})
	}
	if len(indices) > maxListedPoints {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d more", len(indices)-maxListedPoints)})
	}
	return t.Render()
}

// InfoAction prints the size, properties and position statistics of a cloud.
func InfoAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	pc, err := e.loadCloud(c)
	if err != nil {
		return e.close(err)
	}
	stats := pointcloud.ComputeStatistics(pc)
	tree := octree.FromCloud(pc, e.logger, octree.WithConfig(e.cfg.Octree))

	summary := table.NewWriter()
	summary.AppendRows([]table.Row{
		{"Points", pc.Size()},
		{"Capacity", pc.Capacity()},
		{"Extent", formatVector(stats.Bounds)},
		{"Mean", formatVector(stats.Mean)},
		{"Std dev", formatVector(stats.StdDev)},
		{"Octree nodes", tree.NodeCount()},
		{"Octree depth", tree.Depth()},
	})
	if space, ok := pc.Space(); ok {
		summary.AppendRow(table.Row{"Space", space.String()})
	}
	printf(c.App.Writer, "%s", summary.Render())

	props := table.NewWriter()
	props.AppendHeader(table.Row{"Property", "Type", "Bytes per point"})
	for _, p := range pc.Properties() {
		props.AppendRow(table.Row{p.Key(), p.Type().String(), p.BytesPerPoint()})
	}
	printf(c.App.Writer, "%s", props.Render())
	return e.close(nil)
}

// FindAction lists the points inside a sphere or a box using an octree.
func FindAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	var q octree.Query
	switch {
	case c.IsSet(flagCenter):
		center, err := vectorFlag(c, flagCenter)
		if err != nil {
			return e.close(err)
		}
		q = octree.SphereQuery(center, c.Float64(flagRadius))
	case c.IsSet(flagMin) || c.IsSet(flagMax):
		box, err := boxFromFlags(c)
		if err != nil {
			return e.close(err)
		}
		q = octree.BoxQuery(box)
	default:
		return e.close(errors.Errorf("either --%s or --%s and --%s is required", flagCenter, flagMin, flagMax))
	}

	pc, err := e.loadCloud(c)
	if err != nil {
		return e.close(err)
	}
	tree := octree.FromCloud(pc, e.logger, octree.WithConfig(e.cfg.Octree))
	results, err := tree.FindAll(c.Context, []octree.Query{q})
	if err != nil {
		return e.close(err)
	}
	printf(c.App.Writer, "found %d of %d points", len(results[0]), pc.Size())
	printf(c.App.Writer, "%s", pointsTable(pc, results[0]))
	return e.close(nil)
}

// PickAction casts a ray into the cloud and reports the selected points.
func PickAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	origin, errOrigin := vectorFlag(c, flagOrigin)
	direction, errDirection := vectorFlag(c, flagDirection)
	if err := multierr.Combine(errOrigin, errDirection); err != nil {
		return e.close(err)
	}
	pc, err := e.loadCloud(c)
	if err != nil {
		return e.close(err)
	}

	selCfg := e.cfg.Selection
	if c.IsSet(flagTolerance) {
		selCfg.Tolerance = c.Float64(flagTolerance)
	}
	if c.IsSet(flagRadius) {
		selCfg.Radius = c.Float64(flagRadius)
	}
	if err := selCfg.Validate("pick"); err != nil {
		return e.close(err)
	}
	sel := selection.New(pc, e.logger, selection.WithConfig(selCfg), selection.WithOctreeConfig(e.cfg.Octree))
	idx := sel.SelectPoint(spatialmath.NewRay(origin, direction))
	if idx < 0 {
		printf(c.App.Writer, "no point hit")
		return e.close(nil)
	}
	printf(c.App.Writer, "hit point %d at %s, %d selected", idx, formatVector(pc.Positions()[idx]), sel.CountSelected())
	printf(c.App.Writer, "%s", pointsTable(pc, sel.Selected()))
	return e.close(nil)
}

// RangeAction counts the points inside a box using a k-d tree.
func RangeAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	box, err := boxFromFlags(c)
	if err != nil {
		return e.close(err)
	}
	pc, err := e.loadCloud(c)
	if err != nil {
		return e.close(err)
	}
	tree := kdtree.New(e.logger)
	tree.Initialize(pc)
	found := tree.PointsInRange(box)
	printf(c.App.Writer, "%d of %d points in range, k-d tree depth %d", len(found), pc.Size(), tree.Depth())

	if c.Bool(flagCheck) {
		want := octree.FromCloud(pc, e.logger, octree.WithConfig(e.cfg.Octree)).FindInBox(box)
		if !slices.Equal(want, found) {
			return e.close(errors.Errorf("k-d tree found %d points but octree found %d", len(found), len(want)))
		}
		printf(c.App.Writer, "octree agrees")
	}
	return e.close(nil)
}

// EraseAction removes the points inside, or outside, a box and writes the remaining cloud.
func EraseAction(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	box, err := boxFromFlags(c)
	if err != nil {
		return e.close(err)
	}
	pc, err := e.loadCloud(c)
	if err != nil {
		return e.close(err)
	}

	before := pc.Size()
	var ok bool
	if c.Bool(flagOutside) {
		ok = pointcloud.ErasePointsOutsideBox(box, pc)
	} else {
		ok = pc.Erase(octree.FromCloud(pc, e.logger, octree.WithConfig(e.cfg.Octree)).FindInBox(box))
	}
	if !ok {
		return e.close(errors.New("cloud refused the erase"))
	}
	pc.ShrinkToFit()
	if err := pointcloud.WriteToFile(pc, c.Path(flagOutput)); err != nil {
		return e.close(err)
	}
	printf(c.App.Writer, "erased %d points, wrote %d to %s", before-pc.Size(), pc.Size(), c.Path(flagOutput))
	return e.close(nil)
}

// SchemaAction prints the JSON schema of the config file.
func SchemaAction(c *cli.Context) error {
	data, err := config.SchemaJSON()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}

// MetricsAction prints the index metrics when --metrics is set.
func MetricsAction(c *cli.Context) error {
	if !c.Bool(flagMetrics) {
		return nil
	}
	return metrics.WriteText(c.App.Writer)
}
