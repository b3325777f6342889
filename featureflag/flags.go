package featureflag

type Flag string

const (
	FlagDisableOctreeBalance    Flag = "DISABLE_OCTREE_BALANCE"
	FlagDisableOcclusionCulling Flag = "DISABLE_OCCLUSION_CULLING"
	FlagDisableSpherePrefilter  Flag = "DISABLE_SPHERE_PREFILTER"
	FlagDisableFarClip          Flag = "DISABLE_FAR_CLIP"
	FlagDisableLOD              Flag = "DISABLE_LOD"
	FlagCullWithRegionPlanes    Flag = "CULL_WITH_REGION_PLANES"
	FlagSortVisibleSet          Flag = "SORT_VISIBLE_SET"
)
