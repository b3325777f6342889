package spatial

import (
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// Cull fills vs with the groups and elements of the partition visible from
// c. Dirty bounds are recomputed first.
func (p *Partition) Cull(c *camera.Camera, vs *VisibleSet) {
	p.group.Rebound()

	culler := &Culler{
		camera: c,
		opts:   p.opts,
		set:    vs,
	}
	culler.Cull(p.root.Node)
}

// Culler is an octree traveler that collects what a camera sees. Subtrees
// outside the frustum are skipped, and frustum tests stop once a subtree is
// known to be fully inside.
type Culler struct {
	camera *camera.Camera
	opts   Options
	set    *VisibleSet
	res    camera.Intersection
}

// NewCuller returns a culler adding to vs what c sees.
func NewCuller(c *camera.Camera, opts Options, vs *VisibleSet) *Culler {
	return &Culler{
		camera: c,
		opts:   opts,
		set:    vs,
	}
}

// Cull walks the subtree rooted at n.
func (c *Culler) Cull(n *octree.Node) {
	c.res = camera.Partial
	c.Traverse(n)
}

func (c *Culler) Traverse(n *octree.Node) {
	g := GroupOf(n)
	if g == nil || !g.bounds {
		return
	}

	if c.earlyFail(n, g) {
		c.set.Occluded++
		return
	}

	res := c.res
	if c.res != camera.Inside && g.state&StateSkipFrustumCheck == 0 {
		c.res = c.test(g)
		c.set.NodesTested++
	}

	if c.res != camera.Outside {
		octree.PreOrder(c, n)
	}
	c.res = res
}

func (c *Culler) Visit(n *octree.Node) {
	g := GroupOf(n)
	c.set.Groups = append(c.set.Groups, g)

	elements := n.Elements()
	if c.res == camera.Inside || !c.opts.SpherePrefilter {
		c.set.Elements = append(c.set.Elements, elements...)
		return
	}

	for _, e := range elements {
		if c.sphereTest(e.BinPosition(), e.BinRadius()) != camera.Outside {
			c.set.Elements = append(c.set.Elements, e)
		}
	}
}

func (c *Culler) earlyFail(n *octree.Node, g *Group) bool {
	return c.opts.OcclusionCulling &&
		n.Parent() != nil &&
		g.state&StateOccluded != 0
}

func (c *Culler) test(g *Group) camera.Intersection {
	center, extents, _ := g.Bounds()

	if c.opts.RegionPlanes {
		center = center.Sub(c.camera.RegionOrigin())
		if c.opts.FarClip {
			return c.camera.AABBInRegionFrustum(center, extents)
		}
		return c.camera.AABBInRegionFrustumNoFarClip(center, extents)
	}

	if c.opts.FarClip {
		return c.camera.AABBInFrustum(center, extents)
	}
	return c.camera.AABBInFrustumNoFarClip(center, extents)
}

func (c *Culler) sphereTest(center mgl64.Vec3, radius float64) camera.Intersection {
	if c.opts.RegionPlanes {
		center = center.Sub(c.camera.RegionOrigin())
		if c.opts.FarClip {
			return c.camera.SphereInRegionFrustum(center, radius)
		}
		return c.camera.SphereInRegionFrustumNoFarClip(center, radius)
	}

	if c.opts.FarClip {
		return c.camera.SphereInFrustum(center, radius)
	}
	return c.camera.SphereInFrustumNoFarClip(center, radius)
}
