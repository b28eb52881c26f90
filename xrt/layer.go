package xrt

// LayerType tags the variant stored in a LayerData.
type LayerType uint32

const (
	LayerUnknown LayerType = iota
	LayerProjection
	LayerProjectionDepth
	LayerQuad
	LayerCube
	LayerCylinder
	LayerEquirect1
	LayerEquirect2
)

// MaxLayerSwapchains is the most swapchains a single layer may reference
// (projection with depth uses four).
const MaxLayerSwapchains = 4

// SwapchainCount returns how many swapchain references a layer of type t uses.
// Zero means the type is not known.
func (t LayerType) SwapchainCount() int {
	switch t {
	case LayerProjection:
		return 2
	case LayerProjectionDepth:
		return 4
	case LayerQuad, LayerCube, LayerCylinder, LayerEquirect1, LayerEquirect2:
		return 1
	}
	return 0
}

// LayerCompositionFlags modify how a layer is composited.
type LayerCompositionFlags uint32

const (
	LayerCorrectChromaticAberration LayerCompositionFlags = 1 << iota
	LayerBlendTextureSourceAlpha
	LayerUnpremultipliedAlpha
	LayerViewSpace
)

// EyeVisibility selects which eyes a layer is shown to.
type EyeVisibility uint32

const (
	EyeNone EyeVisibility = iota
	EyeLeft
	EyeRight
	EyeBoth
)

// SubImage is the part of a swapchain image a layer samples.
type SubImage struct {
	ImageIndex uint32
	ArrayIndex uint32
	Rect       Rect
}

// LayerView is one eye of a projection layer.
type LayerView struct {
	Sub  SubImage
	Fov  Fov
	Pose Pose
}

// LayerDepth is the depth part of one eye of a projection-depth layer.
type LayerDepth struct {
	Sub      SubImage
	MinDepth float32
	MaxDepth float32
	NearZ    float32
	FarZ     float32
}

// LayerData is the tagged description of one layer. Which fields are meaningful depends on Type:
// projection layers use Views (and Depths), the others use Views[0].Sub, Pose and their own fields.
type LayerData struct {
	Type                   LayerType
	Name                   InputName
	Timestamp              int64
	Flags                  LayerCompositionFlags
	Visibility             EyeVisibility
	FlipY                  bool
	_                      [7]byte
	Views                  [2]LayerView
	Depths                 [2]LayerDepth
	Pose                   Pose
	Size                   Vec2
	Radius                 float32
	CentralAngle           float32
	AspectRatio            float32
	Scale                  Vec2
	Bias                   Vec2
	CentralHorizontalAngle float32
	UpperVerticalAngle     float32
	LowerVerticalAngle     float32
}
