package component

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
)

// ReflectionShader is the contribution shared by the reflection and refraction plugins.
// It carries no state: everything it emits depends on its arguments, so one value can
// serve every permutation.
type ReflectionShader struct {
	contribution
}

var _ ReflRefrShader = &ReflectionShader{}

func (s *ReflectionShader) inputs(in ApplyInputs, surface string) modules.ReflectionInputs {
	ri := modules.ReflectionInputs{Surface: surface, EnvMapIndex: in.EnvMapIndex}
	if ri.EnvMapIndex == "" {
		ri.EnvMapIndex = "C3D_NO_ENV_MAP"
	}
	c := in.Flags.Components
	if c.Has(flags.ComponentRefraction) {
		ri.RefractionRatio = in.Material + ".refractionRatio"
	}
	if c.Has(flags.ComponentClearcoat) {
		ri.ClearcoatNormal = surface + ".normal"
		ri.ClearcoatRoughness = in.Material + ".clearcoatRoughness"
	}
	if c.Has(flags.ComponentSheen) {
		ri.SheenColour = in.Material + ".sheenColour"
	}
	return ri
}

// localSurface copies the surface into a fresh local, named after the number of
// reflection evaluations already emitted into the writer.
func (s *ReflectionShader) localSurface(fb *shader.FunctionBuilder, surface string) string {
	name := "reflSurface" + strconv.Itoa(fb.Writer().CallCount("c3d_computeReflections"))
	return fb.Var(name, modules.SurfaceType, surface)
}

// ComputeReflRefr evaluates reflections and refractions from the surface as is.
//
// Parameters:
//   - fb: the function body
//   - refl: the permutation's reflection model
//   - in: the blend inputs
//
// Returns:
//   - modules.ReflectionOutputs: the result member expressions
func (s *ReflectionShader) ComputeReflRefr(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs) modules.ReflectionOutputs {
	return refl.ComputeCombined(fb, s.inputs(in, in.Surface))
}

// ComputeReflRefrAt evaluates with the view direction rebuilt from worldPosition, for
// passes whose surface was reconstructed without one.
func (s *ReflectionShader) ComputeReflRefrAt(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs, worldPosition, cameraPosition string) modules.ReflectionOutputs {
	local := s.localSurface(fb, in.Surface)
	fb.Assign(local+".worldPosition", worldPosition)
	fb.Assign(local+".viewDir", "normalize("+cameraPosition+" - "+worldPosition+")")
	return refl.ComputeCombined(fb, s.inputs(in, local))
}

// ComputeReflRefrScene is ComputeReflRefrAt with fragCoord addressing the mipped scene
// colour, for compute passes where the pixel is not the rasterized fragment.
func (s *ReflectionShader) ComputeReflRefrScene(fb *shader.FunctionBuilder, refl *modules.ReflectionModel, in ApplyInputs, worldPosition, cameraPosition, fragCoord string) modules.ReflectionOutputs {
	local := s.localSurface(fb, in.Surface)
	fb.Assign(local+".worldPosition", worldPosition)
	fb.Assign(local+".viewDir", "normalize("+cameraPosition+" - "+worldPosition+")")
	fb.Assign(local+".fragCoord", fragCoord)
	return refl.ComputeCombined(fb, s.inputs(in, local))
}
