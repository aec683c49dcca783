package lor

import "math"

// Curve maps a normalized [0, 1] intensity to the protocol brightness
// encoding. The standard curves below cover common uses; callers may pass
// any function with this shape.
type Curve func(normal float64) Brightness

// CurveLinear scales normal directly onto the brightness range.
func CurveLinear(normal float64) Brightness {
	return scaleBrightness(normal)
}

// CurveSquared squares normal before scaling, spending more of the encoding
// on the bright end where the eye discriminates less.
func CurveSquared(normal float64) Brightness {
	return scaleBrightness(normal * normal)
}

// CurveXLights reproduces xLights output byte-for-byte at the boundaries:
// exact dim/full endpoints at 0 and 1, and an interior quantized to
// xLights' 100 intensity steps.
func CurveXLights(normal float64) Brightness {
	switch {
	case normal <= 0:
		return BrightnessDim
	case normal >= 1:
		return BrightnessFull
	default:
		return scaleBrightness(math.Round(normal*100) / 100)
	}
}

func scaleBrightness(normal float64) Brightness {
	span := float64(BrightnessDim) - float64(BrightnessFull)
	return Brightness(float64(BrightnessDim) - span*normal)
}
