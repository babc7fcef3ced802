package visibility

import (
	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Derivatives are the perspective-correct barycentric weights of a pixel and their
// screen-space partial derivatives, one pixel to the right (Dx) and one pixel down (Dy).
type Derivatives struct {
	Lambda mgl32.Vec3
	Dx     mgl32.Vec3
	Dy     mgl32.Vec3
}

// ComputeFullDerivatives reconstructs the barycentrics of the pixel at ndc inside the
// triangle whose clip-space vertices are p0, p1 and p2. A vertex with w == 0 or a
// triangle with zero screen-space area yields the zero value.
//
// Parameters:
//   - p0, p1, p2: the clip-space vertex positions, projected with the current camera
//   - ndc: the pixel centre in normalized device coordinates, y up
//   - size: the render target size in pixels
//
// Returns:
//   - Derivatives: the weights and their gradients
func ComputeFullDerivatives(p0, p1, p2 mgl32.Vec4, ndc, size mgl32.Vec2) Derivatives {
	if p0.W() == 0 || p1.W() == 0 || p2.W() == 0 {
		return Derivatives{}
	}
	invW := mgl32.Vec3{1 / p0.W(), 1 / p1.W(), 1 / p2.W()}
	ndc0 := p0.Vec2().Mul(invW[0])
	ndc1 := p1.Vec2().Mul(invW[1])
	ndc2 := p2.Vec2().Mul(invW[2])

	e0 := ndc2.Sub(ndc1)
	e1 := ndc0.Sub(ndc1)
	det := mgl32.Mat2{e0[0], e0[1], e1[0], e1[1]}.Det()
	if det == 0 {
		return Derivatives{}
	}
	invDet := 1 / det

	ddx := mgl32.Vec3{ndc1.Y() - ndc2.Y(), ndc2.Y() - ndc0.Y(), ndc0.Y() - ndc1.Y()}
	ddy := mgl32.Vec3{ndc2.X() - ndc1.X(), ndc0.X() - ndc2.X(), ndc1.X() - ndc0.X()}
	for i := range 3 {
		ddx[i] *= invDet * invW[i]
		ddy[i] *= invDet * invW[i]
	}
	ddxSum := ddx[0] + ddx[1] + ddx[2]
	ddySum := ddy[0] + ddy[1] + ddy[2]

	delta := ndc.Sub(ndc0)
	interpInvW := invW[0] + delta.X()*ddxSum + delta.Y()*ddySum
	if interpInvW == 0 {
		return Derivatives{}
	}
	interpW := 1 / interpInvW

	var d Derivatives
	d.Lambda = mgl32.Vec3{
		interpW * (invW[0] + delta.X()*ddx[0] + delta.Y()*ddy[0]),
		interpW * (delta.X()*ddx[1] + delta.Y()*ddy[1]),
		interpW * (delta.X()*ddx[2] + delta.Y()*ddy[2]),
	}

	// one pixel in NDC; y grows downwards in pixels
	sx := 2 / size.X()
	sy := -2 / size.Y()
	ddx = ddx.Mul(sx)
	ddy = ddy.Mul(sy)
	ddxSum *= sx
	ddySum *= sy

	wx := interpInvW + ddxSum
	wy := interpInvW + ddySum
	if wx == 0 || wy == 0 {
		return Derivatives{Lambda: d.Lambda}
	}
	d.Dx = d.Lambda.Mul(interpInvW).Add(ddx).Mul(1 / wx).Sub(d.Lambda)
	d.Dy = d.Lambda.Mul(interpInvW).Add(ddy).Mul(1 / wy).Sub(d.Lambda)
	return d
}

// IsZero reports whether d is the degenerate result.
func (d Derivatives) IsZero() bool {
	return d.Lambda == mgl32.Vec3{} && d.Dx == mgl32.Vec3{} && d.Dy == mgl32.Vec3{}
}

// Interpolated is an interpolated attribute with its screen-space gradients.
type Interpolated[T any] struct {
	Value T
	Dx    T
	Dy    T
}

func weigh(w mgl32.Vec3, a, b, c float32) float32 {
	return a*w[0] + b*w[1] + c*w[2]
}

// Interpolate interpolates a scalar vertex attribute.
func Interpolate(d Derivatives, a, b, c float32) Interpolated[float32] {
	return Interpolated[float32]{
		Value: weigh(d.Lambda, a, b, c),
		Dx:    weigh(d.Dx, a, b, c),
		Dy:    weigh(d.Dy, a, b, c),
	}
}

// Interpolate2 interpolates a vec2 vertex attribute, such as texture coordinates.
func Interpolate2(d Derivatives, a, b, c mgl32.Vec2) Interpolated[mgl32.Vec2] {
	var out Interpolated[mgl32.Vec2]
	for i := range 2 {
		s := Interpolate(d, a[i], b[i], c[i])
		out.Value[i], out.Dx[i], out.Dy[i] = s.Value, s.Dx, s.Dy
	}
	return out
}

// Interpolate3 interpolates a vec3 vertex attribute.
func Interpolate3(d Derivatives, a, b, c mgl32.Vec3) Interpolated[mgl32.Vec3] {
	var out Interpolated[mgl32.Vec3]
	for i := range 3 {
		s := Interpolate(d, a[i], b[i], c[i])
		out.Value[i], out.Dx[i], out.Dy[i] = s.Value, s.Dx, s.Dy
	}
	return out
}

// Interpolate4 interpolates a vec4 vertex attribute.
func Interpolate4(d Derivatives, a, b, c mgl32.Vec4) Interpolated[mgl32.Vec4] {
	var out Interpolated[mgl32.Vec4]
	for i := range 4 {
		s := Interpolate(d, a[i], b[i], c[i])
		out.Value[i], out.Dx[i], out.Dy[i] = s.Value, s.Dx, s.Dy
	}
	return out
}

// PixelToNDC converts a pixel centre to normalized device coordinates, y up.
func PixelToNDC(x, y uint32, size mgl32.Vec2) mgl32.Vec2 {
	return common.PixelToNDC([2]uint32{x, y}, size)
}

// MotionVector returns the screen-space motion of a point, in UV units, from its
// previous and current clip positions. Points with w == 0 have no motion.
func MotionVector(current, previous mgl32.Vec4) mgl32.Vec2 {
	if current.W() == 0 || previous.W() == 0 {
		return mgl32.Vec2{}
	}
	cur := current.Vec2().Mul(1 / current.W())
	prev := previous.Vec2().Mul(1 / previous.W())
	// ndc y up to uv y down
	d := prev.Sub(cur).Mul(0.5)
	return mgl32.Vec2{d.X(), -d.Y()}
}
