// Package colormap recolors point buffers by normalized height.
package colormap

import (
	"github.com/seqsense/pcgol/mat"

	"github.com/mapware/pcview/cloud"
)

type Mode int

const (
	// ModeDefault keeps the colors decoded from the source.
	ModeDefault Mode = iota
	// ModeHeight maps normalized height to a blue-green-red ramp.
	ModeHeight
	// ModeRainbow maps normalized height to a 0-300 degree hue sweep.
	ModeRainbow
	// ModeHeat maps normalized height to a black-red-yellow-white ramp.
	ModeHeat
)

func (m Mode) String() string {
	switch m {
	case ModeHeight:
		return "height"
	case ModeRainbow:
		return "rainbow"
	case ModeHeat:
		return "heat"
	}
	return "default"
}

// Apply returns a buffer recolored according to mode. The returned buffer
// shares position storage with the input; only the color array is new.
// ModeDefault returns the input as is.
func Apply(b *cloud.PointBuffer, mode Mode) *cloud.PointBuffer {
	if mode == ModeDefault || b.Count == 0 {
		return b
	}
	min, max, err := cloud.HeightRange(b)
	if err != nil {
		return b
	}
	span := max - min
	ramp := rampFunc(mode)

	out := *b
	out.Colors = make([]float32, 3*b.Count)
	for i := 0; i < b.Count; i++ {
		var t float32
		if span > 0 {
			t = (b.DisplayPositions[3*i+1] - min) / span
		}
		c := ramp(t)
		out.Colors[3*i] = c[0]
		out.Colors[3*i+1] = c[1]
		out.Colors[3*i+2] = c[2]
	}
	return &out
}

func rampFunc(mode Mode) func(float32) mat.Vec3 {
	switch mode {
	case ModeRainbow:
		return Rainbow
	case ModeHeat:
		return Heat
	default:
		return Height
	}
}

// Height maps t in [0,1] to blue at 0, green at 0.5 and red at 1.
func Height(t float32) mat.Vec3 {
	if t < 0.5 {
		return mat.Vec3{0, 2 * t, 1 - 2*t}
	}
	return mat.Vec3{2 * (t - 0.5), 1 - 2*(t-0.5), 0}
}

// Heat maps t in [0,1] through black, red, yellow to white.
func Heat(t float32) mat.Vec3 {
	switch {
	case t < 1.0/3:
		return mat.Vec3{3 * t, 0, 0}
	case t < 2.0/3:
		return mat.Vec3{1, 3*t - 1, 0}
	default:
		return mat.Vec3{1, 1, 3*t - 2}
	}
}

// Rainbow maps t in [0,1] to the hue range 0-300 degrees at full saturation
// and 50% lightness.
func Rainbow(t float32) mat.Vec3 {
	return hslToRGB(300*t, 1, 0.5)
}

// hslToRGB converts hue in degrees, saturation and lightness in [0,1] to RGB.
func hslToRGB(h, s, l float32) mat.Vec3 {
	c := (1 - abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - abs(mod2(hp)-1))
	var r, g, b float32
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	return mat.Vec3{r + m, g + m, b + m}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func mod2(v float32) float32 {
	for v >= 2 {
		v -= 2
	}
	for v < 0 {
		v += 2
	}
	return v
}
