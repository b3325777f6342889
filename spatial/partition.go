package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultSlopRatio is the relative distance or view angle change that
// triggers a level of detail change.
const DefaultSlopRatio = 0.25

// Options configures a partition.
type Options struct {
	// The relative change that triggers a level of detail change.
	SlopRatio float64

	// Skips occluded groups, the root excepted.
	OcclusionCulling bool

	// Tests groups against the far plane.
	FarClip bool

	// Tests each element of partially visible groups against the frustum.
	SpherePrefilter bool

	// Tests against the camera region planes instead of the world ones.
	RegionPlanes bool

	// Collapses single child chains under the root every update.
	Balance bool
}

// DefaultOptions returns the default partition options.
func DefaultOptions() Options {
	return Options{
		SlopRatio:        DefaultSlopRatio,
		OcclusionCulling: true,
		FarClip:          true,
		SpherePrefilter:  true,
		Balance:          true,
	}
}

// Partition is an octree with a group attached to every node.
type Partition struct {
	root  *octree.Root
	group *Group
	opts  Options
}

// NewPartition creates an empty partition centered on center.
func NewPartition(conf *octree.Config, center mgl64.Vec3, halfSize float64, opts Options) (*Partition, error) {
	root, err := octree.NewRoot(conf, center, halfSize)
	if err != nil {
		return nil, errors.New("creating partition failed").Wrap(err)
	}

	return &Partition{
		root:  root,
		group: NewGroup(root.Node),
		opts:  opts,
	}, nil
}

func (p *Partition) Root() *octree.Root {
	return p.root
}

// Group returns the group attached to the root.
func (p *Partition) Group() *Group {
	return p.group
}

func (p *Partition) Options() Options {
	return p.opts
}

func (p *Partition) SetOptions(opts Options) {
	p.opts = opts
}

// Put indexes e.
func (p *Partition) Put(e octree.Element) bool {
	return p.root.Insert(e)
}

// Remove stops indexing e.
func (p *Partition) Remove(e octree.Element) bool {
	return p.root.Remove(e)
}

// Move updates the partition after e changed its position or radius. The
// element stays in its node when the tree would still place it there,
// otherwise it is reinserted.
func (p *Partition) Move(e octree.Element) bool {
	pos := e.BinPosition()
	if n := p.root.Owner(e); n != nil && n.IsInside(pos) && p.root.NodeAt(pos, e.BinRadius()) == n {
		if g := GroupOf(n); g != nil {
			g.objectMoved()
		}
		return true
	}

	p.root.Remove(e)
	return p.root.Insert(e)
}

// Update balances the tree when enabled and recomputes the dirty bounds.
func (p *Partition) Update() {
	if p.opts.Balance {
		p.root.Balance()
	}
	p.group.Rebound()
}

// UpdateLOD computes the distances of every group from c and returns the
// number of groups whose level of detail changed.
func (p *Partition) UpdateLOD(c *camera.Camera) int {
	changed := 0
	p.Groups(func(g *Group) {
		g.UpdateDistances(c)
		if g.ChangeLOD(p.opts.SlopRatio) {
			changed++
		}
	})
	return changed
}

// Destroy untracks every element. The partition stays usable.
func (p *Partition) Destroy() {
	p.root.Destroy()
	p.group = NewGroup(p.root.Node)
}

func (p *Partition) Stats() octree.Stats {
	return p.root.Stats()
}

// Groups calls fn with every group of the partition, parents first.
func (p *Partition) Groups(fn func(*Group)) {
	octree.Walk(p.root.Node, func(n *octree.Node) {
		if g := GroupOf(n); g != nil {
			fn(g)
		}
	})
}
