package component

import (
	"maps"
	"strconv"

	"github.com/Carmen-Shannon/oxy-castor/common"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/flags"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-castor/engine/renderer/shader/modules"
	"github.com/go-gl/mathgl/mgl32"
)

// basePlugin is the table-driven implementation shared by every built-in plugin.
type basePlugin struct {
	id           string
	flags        flags.ComponentFlags
	textures     flags.TextureFlags
	capabilities flags.ComponentModeFlags
	members      []Member
	shader       ShaderContribution
	create       func(base *baseComponent) Component
}

var _ Plugin = &basePlugin{}

func (p *basePlugin) ID() string                             { return p.id }
func (p *basePlugin) Flags() flags.ComponentFlags            { return p.flags }
func (p *basePlugin) TextureFlags() flags.TextureFlags       { return p.textures }
func (p *basePlugin) Capabilities() flags.ComponentModeFlags { return p.capabilities }
func (p *basePlugin) Members() []Member                      { return p.members }
func (p *basePlugin) Shader() ShaderContribution             { return p.shader }

func (p *basePlugin) CreateComponent(owner Owner) Component {
	base := newBaseComponent(p, owner)
	if p.create == nil {
		return base
	}
	return p.create(base)
}

func (p *basePlugin) FilterComponentFlags(mode flags.ComponentModeFlags, combine flags.ComponentFlags) flags.ComponentFlags {
	if mode.HasAny(p.capabilities) {
		return combine
	}
	return combine.Without(p.flags)
}

// baseComponent stores member values by name, seeded with the plugin defaults.
type baseComponent struct {
	plugin Plugin
	owner  Owner
	values map[string]any
}

var _ Component = &baseComponent{}

func newBaseComponent(p Plugin, owner Owner) *baseComponent {
	c := &baseComponent{plugin: p, owner: owner, values: make(map[string]any, len(p.Members()))}
	for _, m := range p.Members() {
		c.values[m.Name] = m.Default
	}
	return c
}

func (c *baseComponent) Plugin() Plugin              { return c.plugin }
func (c *baseComponent) Owner() Owner                { return c.owner }
func (c *baseComponent) Flags() flags.ComponentFlags { return c.plugin.Flags() }

// Value returns the current value of a member.
func (c *baseComponent) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Values returns a copy of every member value.
func (c *baseComponent) Values() map[string]any { return maps.Clone(c.values) }

func (c *baseComponent) set(name string, v any) { c.values[name] = v }

func (c *baseComponent) DataSize() int {
	n := 0
	for _, m := range c.plugin.Members() {
		n += memberSize(m.Type)
	}
	return n
}

func (c *baseComponent) Fill(dst []byte, layout shader.StructLayout) {
	for _, m := range c.plugin.Members() {
		ml, ok := layout.Member(m.Name)
		if !ok || int(ml.Offset+ml.Size) > len(dst) {
			continue
		}
		putValue(dst, int(ml.Offset), c.values[m.Name])
	}
}

func memberSize(typ string) int {
	switch typ {
	case "f32", "u32", "i32":
		return 4
	case "vec2<f32>", "vec2<u32>":
		return 8
	case "vec3<f32>", "vec3<u32>":
		return 12
	case "vec4<f32>", "vec4<u32>":
		return 16
	}
	return 0
}

func putValue(buf []byte, offset int, v any) {
	switch v := v.(type) {
	case float32:
		common.PutFloat32(buf, offset, v)
	case uint32:
		common.PutUint32(buf, offset, v)
	case bool:
		if v {
			common.PutUint32(buf, offset, 1)
		} else {
			common.PutUint32(buf, offset, 0)
		}
	case mgl32.Vec2:
		common.PutFloat32(buf, offset, v[0])
		common.PutFloat32(buf, offset+4, v[1])
	case mgl32.Vec3:
		common.PutVec3(buf, offset, v)
	case mgl32.Vec4:
		common.PutVec4(buf, offset, v)
	}
}

// contribution is a ShaderContribution assembled from optional hooks.
type contribution struct {
	declare func(ctx *modules.Context)
	apply   func(fb *shader.FunctionBuilder, in ApplyInputs)
	texture func(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string)
	finish  func(fb *shader.FunctionBuilder, in ApplyInputs)
}

var _ ShaderContribution = &contribution{}

func (c *contribution) Declare(ctx *modules.Context) {
	if c.declare != nil {
		c.declare(ctx)
	}
}

func (c *contribution) Apply(fb *shader.FunctionBuilder, in ApplyInputs) {
	if c.apply != nil {
		c.apply(fb, in)
	}
}

func (c *contribution) ApplyTexture(fb *shader.FunctionBuilder, in ApplyInputs, config, sample string) {
	if c.texture != nil {
		c.texture(fb, in, config, sample)
	}
}

func (c *contribution) Finish(fb *shader.FunctionBuilder, in ApplyInputs) {
	if c.finish != nil {
		c.finish(fb, in)
	}
}

// ifChannel emits body guarded by the texture unit feeding channel.
func ifChannel(fb *shader.FunctionBuilder, config string, channel flags.TextureFlags, body func()) {
	fb.If("("+config+".flags & "+strconv.FormatUint(uint64(channel), 10)+"u) != 0u", body)
}
