package modules

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
)

// MaxDebugProbes is the number of probes one DebugOutput keeps. Further probes are
// ignored.
const MaxDebugProbes = 32

// DebugProbe is one registered value. Index is the debug index that selects it; 0 means
// no debug output.
type DebugProbe struct {
	Category string
	Name     string
	Index    uint32
}

// DebugOutput collects named probe values during one entry point and, on Close, lets
// the scene's debug index replace the output with one of them. Without the debug
// output flag it emits nothing.
type DebugOutput struct {
	ctx     *Context
	fb      *shader.FunctionBuilder
	enabled bool
	index   string
	output  string

	probes  []DebugProbe
	values  []string
	dropped int
	closed  bool
}

// NewDebugOutput opens a probe scope.
//
// Parameters:
//   - ctx: the module context
//   - fb: the entry point body
//   - index: a u32 expression selecting the probe, such as c3d_scene.debugIndex
//   - output: the vec4<f32> variable overwritten by the selected probe
//
// Returns:
//   - *DebugOutput: the scope; Close must be called before the entry point returns
func NewDebugOutput(ctx *Context, fb *shader.FunctionBuilder, index, output string) *DebugOutput {
	return &DebugOutput{
		ctx:     ctx,
		fb:      fb,
		enabled: ctx.Flags.Shader.Has(flags.ShaderDebugOutput),
		index:   index,
		output:  output,
	}
}

// Enabled reports whether probes are emitted.
func (d *DebugOutput) Enabled() bool { return d.enabled }

// Register records a vec4<f32> probe.
func (d *DebugOutput) Register(category, name, value string) {
	if !d.enabled || d.closed {
		return
	}
	if len(d.probes) == MaxDebugProbes {
		d.dropped++
		return
	}
	d.probes = append(d.probes, DebugProbe{Category: category, Name: name, Index: uint32(len(d.probes) + 1)})
	d.values = append(d.values, value)
}

// RegisterScalar records an f32 probe, splatted to all channels but alpha.
func (d *DebugOutput) RegisterScalar(category, name, value string) {
	d.Register(category, name, fmt.Sprintf("vec4<f32>(vec3<f32>(%s), 1.0)", value))
}

// RegisterVec3 records a vec3<f32> probe.
func (d *DebugOutput) RegisterVec3(category, name, value string) {
	d.Register(category, name, fmt.Sprintf("vec4<f32>(%s, 1.0)", value))
}

// Probes returns the registered probes.
func (d *DebugOutput) Probes() []DebugProbe { return d.probes }

// Close emits the probe switch. Calling it again does nothing.
func (d *DebugOutput) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.dropped > 0 {
		d.ctx.Logger.Warn("debug probes dropped",
			"max", MaxDebugProbes,
			"dropped", d.dropped)
	}
	if !d.enabled || len(d.probes) == 0 {
		return
	}
	cases := make([]shader.SwitchCase, len(d.probes))
	for i, p := range d.probes {
		value := d.values[i]
		cases[i] = shader.SwitchCase{
			Value: uintLiteral(p.Index),
			Body:  func() { d.fb.Assign(d.output, value) },
		}
	}
	d.fb.Switch(d.index, cases, nil)
}
