package render

import "fmt"

// Profile is the graphics API profile requested for a context.
type Profile int

const (
	ProfileLegacy Profile = iota
	ProfileCore32
)

func (p Profile) String() string {
	switch p {
	case ProfileLegacy:
		return "legacy"
	case ProfileCore32:
		return "3.2-core"
	default:
		return fmt.Sprintf("Profile(%d)", int(p))
	}
}

// PixelAttribute is one entry of a pixel configuration request.
type PixelAttribute int

const (
	AttrProfile PixelAttribute = iota
	AttrDoubleBuffer
	AttrAllowOfflineRenderers
	AttrBackingStore
	AttrAccelerated
	AttrAutomaticGraphicsSwitching
	AttrColorSize
	AttrAlphaSize
	AttrDepthSize
)

var attrNames = [...]string{
	AttrProfile:                    "profile",
	AttrDoubleBuffer:               "double-buffer",
	AttrAllowOfflineRenderers:      "allow-offline-renderers",
	AttrBackingStore:               "backing-store",
	AttrAccelerated:                "accelerated",
	AttrAutomaticGraphicsSwitching: "automatic-graphics-switching",
	AttrColorSize:                  "color-size",
	AttrAlphaSize:                  "alpha-size",
	AttrDepthSize:                  "depth-size",
}

func (a PixelAttribute) String() string {
	if a >= 0 && int(a) < len(attrNames) {
		return attrNames[a]
	}
	return fmt.Sprintf("PixelAttribute(%d)", int(a))
}

// PixelConfiguration describes the buffering, colour and acceleration
// capabilities a graphics context is created with.
type PixelConfiguration struct {
	DisplayMask uint32
	Profile     Profile

	DoubleBuffer               bool
	Accelerated                bool
	AllowOfflineRenderers      bool
	BackingStore               bool
	AutomaticGraphicsSwitching bool

	ColorSize int
	AlphaSize int
	DepthSize int
}

// NegotiatePixelConfiguration returns a double-buffered, accelerated,
// 3.2 core profile configuration that also allows offline renderers and
// automatic GPU switching. The result depends only on mask.
func NegotiatePixelConfiguration(mask uint32) PixelConfiguration {
	return PixelConfiguration{
		DisplayMask:                mask,
		Profile:                    ProfileCore32,
		DoubleBuffer:               true,
		Accelerated:                true,
		AllowOfflineRenderers:      true,
		BackingStore:               true,
		AutomaticGraphicsSwitching: true,
		ColorSize:                  8,
		AlphaSize:                  8,
		DepthSize:                  0,
	}
}

// AttributeValue is a requested attribute and its value.
type AttributeValue struct {
	Attr  PixelAttribute
	Value int
}

// Attributes lists the requested attributes in the order a host should
// apply them. Boolean attributes that are off are omitted.
func (c PixelConfiguration) Attributes() []AttributeValue {
	attrs := []AttributeValue{{AttrProfile, int(c.Profile)}}
	flag := func(on bool, a PixelAttribute) {
		if on {
			attrs = append(attrs, AttributeValue{a, 1})
		}
	}
	flag(c.DoubleBuffer, AttrDoubleBuffer)
	flag(c.AllowOfflineRenderers, AttrAllowOfflineRenderers)
	flag(c.BackingStore, AttrBackingStore)
	flag(c.Accelerated, AttrAccelerated)
	flag(c.AutomaticGraphicsSwitching, AttrAutomaticGraphicsSwitching)
	attrs = append(attrs,
		AttributeValue{AttrColorSize, c.ColorSize},
		AttributeValue{AttrAlphaSize, c.AlphaSize},
		AttributeValue{AttrDepthSize, c.DepthSize},
	)
	return attrs
}
