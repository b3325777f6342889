//go:build octree_paranoia

package octree

const paranoid = true
