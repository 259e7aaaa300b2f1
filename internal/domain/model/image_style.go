package model

type ImageStyle string

const (
	ImageStylePhotorealistic ImageStyle = "photorealistic"
	ImageStyleEditorial      ImageStyle = "editorial_illustration"
	ImageStyleWatercolor     ImageStyle = "watercolor"
	ImageStyleFlatVector     ImageStyle = "flat_vector"
	ImageStyleIsometric3D    ImageStyle = "isometric_3d"

	// deprecated styles, still present on historical jobs
	ImageStyleCartoon   ImageStyle = "cartoon"
	ImageStyleLineArt   ImageStyle = "line_art"
	ImageStyleLowPoly3D ImageStyle = "low_poly"
)

// DefaultImageStyle starts the rotation when no job has completed yet.
const DefaultImageStyle = ImageStylePhotorealistic

// styleRotation maps every known style to exactly one current successor.
// Deprecated styles fold forward into the style that replaced their slot.
var styleRotation = map[ImageStyle]ImageStyle{
	ImageStylePhotorealistic: ImageStyleEditorial,
	ImageStyleEditorial:      ImageStyleWatercolor,
	ImageStyleWatercolor:     ImageStyleFlatVector,
	ImageStyleFlatVector:     ImageStyleIsometric3D,
	ImageStyleIsometric3D:    ImageStylePhotorealistic,

	ImageStyleCartoon:   ImageStyleWatercolor,
	ImageStyleLineArt:   ImageStyleIsometric3D,
	ImageStyleLowPoly3D: ImageStylePhotorealistic,
}

// NextImageStyle returns the successor of s. Unknown or empty styles restart the rotation.
func NextImageStyle(s ImageStyle) ImageStyle {
	if next, ok := styleRotation[s]; ok {
		return next
	}
	return DefaultImageStyle
}

// CurrentImageStyles lists the styles the rotation can hand out, in rotation order.
func CurrentImageStyles() []ImageStyle {
	out := []ImageStyle{DefaultImageStyle}
	for s := NextImageStyle(DefaultImageStyle); s != DefaultImageStyle; s = NextImageStyle(s) {
		out = append(out, s)
	}
	return out
}

// PromptHint is appended to image prompts for the style.
func (s ImageStyle) PromptHint() string {
	switch s {
	case ImageStylePhotorealistic:
		return "photorealistic, natural lighting, high detail"
	case ImageStyleEditorial:
		return "editorial illustration, bold shapes, magazine cover feel"
	case ImageStyleWatercolor, ImageStyleCartoon:
		return "soft watercolor painting, textured paper"
	case ImageStyleFlatVector:
		return "flat vector illustration, limited palette, clean lines"
	case ImageStyleIsometric3D, ImageStyleLineArt, ImageStyleLowPoly3D:
		return "isometric 3d render, soft shadows, pastel colors"
	}
	return ""
}
