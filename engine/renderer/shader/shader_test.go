package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleKernel(w *Writer) {
	w.DeclareBinding(Binding{Group: 0, Index: 0, Name: "data", Kind: BindingStorageRW, Type: "array<f32>"})
	w.ImplementEntryPoint(EntryCompute, "main", "@workgroup_size(64)",
		[]Param{{Name: "@builtin(global_invocation_id) id", Type: "vec3<u32>"}}, "",
		func(fb *FunctionBuilder) {
			fb.Assign("data[id.x]", "data[id.x] * 2.0")
		})
}

func TestFunctionCellDeclaresOnce(t *testing.T) {
	w := NewWriter()
	var cell FunctionCell
	declare := func(w *Writer) (*Function, error) {
		return w.ImplementFunction("c3d_saturate", []Param{{Name: "v", Type: "f32"}}, "f32", func(fb *FunctionBuilder) {
			fb.Return("clamp(v, 0.0, 1.0)")
		})
	}
	for range 4 {
		fn := cell.Get(w, declare)
		require.NotNil(t, fn)
		w.Call(fn, "1.0")
	}
	assert.Equal(t, 1, w.DeclarationCount("c3d_saturate"))
	assert.Equal(t, 4, w.CallCount("c3d_saturate"))
	assert.Equal(t, 1, strings.Count(w.Source(), "fn c3d_saturate("))

	// a new writer is a new permutation
	w2 := NewWriter()
	fn := cell.Get(w2, declare)
	require.NotNil(t, fn)
	assert.Equal(t, 1, w2.DeclarationCount("c3d_saturate"))
}

func TestDuplicateFunctionIsAnError(t *testing.T) {
	w := NewWriter(WithLabel("dup"))
	_, err := w.ImplementFunction("f", nil, "", nil)
	require.NoError(t, err)
	_, err = w.ImplementFunction("f", nil, "", nil)
	require.ErrorIs(t, err, ErrDuplicateFunction)
	_, err = w.Finish("dup")
	assert.ErrorIs(t, err, ErrDuplicateFunction)
}

func TestBindingConflict(t *testing.T) {
	w := NewWriter()
	w.DeclareBinding(Binding{Group: 1, Index: 3, Name: "a", Kind: BindingUniform, Type: "vec4<f32>"})
	w.DeclareBinding(Binding{Group: 1, Index: 3, Name: "b", Kind: BindingSampler, Type: "sampler"})
	assert.ErrorIs(t, w.Err(), ErrBindingConflict)
}

func TestBindingCounterContinues(t *testing.T) {
	c := NewBindingCounter(1, 4)
	assert.Equal(t, uint32(4), c.Claim())
	assert.Equal(t, uint32(5), c.Claim())
	assert.Equal(t, uint32(6), c.Next)
}

func TestPushConstantBlockLayout(t *testing.T) {
	block := PushConstantBlock{
		TypeName: "DrawData",
		VarName:  "c3d_draw",
		Members: []PushConstantMember{
			{Name: "pipelineId", Type: "u32"},
			{Name: "billboardNodeId", Type: "u32"},
		},
		Stages: wgpu.ShaderStageFragment,
	}
	assert.Equal(t, uint32(8), block.Size())
	assert.Equal(t, 0, block.Offset("pipelineId"))
	assert.Equal(t, 4, block.Offset("billboardNodeId"))
	assert.Equal(t, -1, block.Offset("missing"))
}

func TestPushConstantEmulation(t *testing.T) {
	block := PushConstantBlock{
		TypeName: "DrawData",
		VarName:  "c3d_draw",
		Members:  []PushConstantMember{{Name: "pipelineId", Type: "u32"}},
		Stages:   wgpu.ShaderStageCompute,
	}

	native := NewWriter()
	native.DeclarePushConstants(block)
	assert.Contains(t, native.Source(), "var<push_constant> c3d_draw: DrawData;")
	assert.Empty(t, native.Bindings())

	emulated := NewWriter(WithPushConstantMode(PushConstantsUniform))
	emulated.DeclarePushConstants(block)
	b, ok := emulated.Binding("c3d_draw")
	require.True(t, ok)
	assert.Equal(t, uint32(PushConstantGroup), b.Group)
	assert.True(t, b.DynamicOffset)
	assert.True(t, b.LayoutEntry().Buffer.HasDynamicOffset)
	assert.Contains(t, emulated.Source(), "var<uniform> c3d_draw: DrawData;")
}

func TestPreProcessorExpandsAnnotations(t *testing.T) {
	src := strings.Join([]string{
		"//@oxy:include scene",
		"//@oxy:include scene",
		"//@oxy:provider 0 1 lights",
		"//@oxy:group 0 1 storage_read c3d_lights array<light>",
		"//@oxy:provider 0 2 reflection env_map",
		"@group(0) @binding(2) var c3d_envMap: texture_cube_array<f32>;",
	}, "\n")
	pp := NewPreProcessor()
	out, err := pp.Process(src)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct SceneUniform"))
	assert.Contains(t, out, "@group(0) @binding(1) var<storage, read> c3d_lights: array<Light>;")

	decls := pp.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, AnnotationArgLights, decls[0].Provider())
	assert.Equal(t, AnnotationTypeBindingGroup, decls[1].Type)
	assert.Equal(t, [2]int{0, 1}, [2]int{decls[1].Group, decls[1].Binding})
	assert.Equal(t, AnnotationArg("c3d_lights"), decls[1].Args[1])
	assert.Equal(t, AnnotationArgReflection, decls[2].Provider())
	assert.Equal(t, AnnotationArg("env_map"), decls[2].Role())
}

func TestPreProcessorRejectsMalformed(t *testing.T) {
	cases := []string{
		"//@oxy:include unknown",
		"//@oxy:group 0 x storage_read v light",
		"//@oxy:provider 0 1 nobody",
		"//@oxy:provider 0 1 lights Bad-Role",
		"//@oxy:frobnicate",
		"//@oxy:group 0 1 storage_read c3d_lights",
		"//@oxy:include light extra",
	}
	for _, c := range cases {
		_, err := NewPreProcessor().Process(c)
		assert.Error(t, err, c)
	}
}

func TestWriterProgramReflection(t *testing.T) {
	w := NewWriter()
	w.DeclareBinding(Binding{Group: 0, Index: 0, Name: "c3d_scene", Kind: BindingUniform, Struct: AnnotationArgScene, Provider: AnnotationArgTechnique})
	w.DeclareBinding(Binding{Group: 0, Index: 1, Name: "c3d_lights", Kind: BindingStorage, Struct: AnnotationArgLight, Array: true, Provider: AnnotationArgLights})
	w.DeclareBinding(Binding{Group: 1, Index: 0, Name: "c3d_depth", Kind: BindingDepthTexture, Type: "texture_depth_2d"})
	w.DeclareBinding(Binding{Group: 1, Index: 1, Name: "c3d_shadowSampler", Kind: BindingComparisonSampler, Type: "sampler_comparison"})
	w.DeclareBinding(Binding{Group: 1, Index: 2, Name: "c3d_output", Kind: BindingStorageTexture, Type: "texture_storage_2d<rgba16float, write>"})
	w.ImplementEntryPoint(EntryCompute, "main", "@workgroup_size(8, 8)", nil, "", func(fb *FunctionBuilder) {
		fb.Line("_ = c3d_scene.frameIndex;")
	})
	p, err := w.Finish("reflect")
	require.NoError(t, err)
	require.NotNil(t, p.Compute)
	assert.True(t, p.IsCompute())
	assert.Equal(t, [3]uint32{8, 8, 1}, p.Compute.WorkgroupSize())

	reflected := p.Reflected()
	require.Len(t, reflected, 5)
	kinds := make([]BindingKind, len(reflected))
	for i, r := range reflected {
		kinds[i] = r.Kind
	}
	assert.Equal(t, []BindingKind{BindingUniform, BindingStorage, BindingDepthTexture, BindingComparisonSampler, BindingStorageTexture}, kinds)
	require.NoError(t, ValidateLayout(p.Bindings, reflected))

	_, err = ReflectionCompiler{}.Compile(p)
	require.NoError(t, err)

	// the providers survive expansion
	var providers []AnnotationArg
	for _, d := range p.Compute.Declarations() {
		if d.Type == AnnotationTypeProvider {
			providers = append(providers, d.Provider())
		}
	}
	assert.Equal(t, []AnnotationArg{AnnotationArgTechnique, AnnotationArgLights}, providers)

	// CPU and shader layouts agree entry by entry
	cpu := p.Layouts()
	gpu := p.Compute.BindGroupLayoutDescriptors()
	require.Len(t, cpu, len(gpu))
	for g, d := range gpu {
		require.Len(t, cpu[g].Entries, len(d.Entries))
		for i := range d.Entries {
			assert.Equal(t, d.Entries[i].Binding, cpu[g].Entries[i].Binding)
			assert.Equal(t, d.Entries[i].Buffer.Type, cpu[g].Entries[i].Buffer.Type)
			assert.Equal(t, d.Entries[i].Sampler.Type, cpu[g].Entries[i].Sampler.Type)
			assert.Equal(t, d.Entries[i].Texture.SampleType, cpu[g].Entries[i].Texture.SampleType)
			assert.Equal(t, d.Entries[i].StorageTexture.Format, cpu[g].Entries[i].StorageTexture.Format)
		}
	}
}

func TestValidateLayoutReportsMismatch(t *testing.T) {
	cpu := []Binding{
		{Group: 0, Index: 0, Name: "a", Kind: BindingUniform},
		{Group: 0, Index: 1, Name: "b", Kind: BindingStorage},
		{Group: 0, Index: 2, Name: "c", Kind: BindingStorageRW},
	}
	ok := []ReflectedBinding{
		{Group: 0, Binding: 0, Name: "a", Kind: BindingUniform, AccessKnown: true},
		{Group: 0, Binding: 1, Name: "b", Kind: BindingStorage, AccessKnown: true},
		// access unknown: read-write matches plain storage
		{Group: 0, Binding: 2, Name: "c", Kind: BindingStorage},
	}
	require.NoError(t, ValidateLayout(cpu, ok))

	cases := map[string][]ReflectedBinding{
		"kind":    {ok[0], {Group: 0, Binding: 1, Name: "b", Kind: BindingUniform, AccessKnown: true}, ok[2]},
		"access":  {ok[0], ok[1], {Group: 0, Binding: 2, Name: "c", Kind: BindingStorage, AccessKnown: true}},
		"missing": {ok[0], ok[1]},
		"extra":   append(append([]ReflectedBinding{}, ok...), ReflectedBinding{Group: 1, Binding: 0, Name: "d", Kind: BindingSampler}),
	}
	for name, reflected := range cases {
		assert.ErrorIs(t, ValidateLayout(cpu, reflected), ErrBindingMismatch, name)
	}
}

func TestReflectionCompilerDetectsDrift(t *testing.T) {
	w := NewWriter()
	doubleKernel(w)
	p, err := w.Finish("drift")
	require.NoError(t, err)
	p.Bindings[0].Kind = BindingUniform
	_, err = ReflectionCompiler{}.Compile(p)
	assert.ErrorIs(t, err, ErrBindingMismatch)
}

func TestNagaValidatesGeneratedProgram(t *testing.T) {
	w := NewWriter()
	doubleKernel(w)
	p, err := w.Finish("double")
	require.NoError(t, err)

	out, err := NewNagaCompiler().Compile(p)
	require.NoError(t, err)
	assert.Nil(t, out.SPIRV)
	require.Len(t, out.Reflected, 1)
	assert.Equal(t, "data", out.Reflected[0].Name)
	assert.Equal(t, BindingStorage, out.Reflected[0].Kind)
	assert.False(t, out.Reflected[0].AccessKnown)
}

func TestNagaEmitsSPIRV(t *testing.T) {
	w := NewWriter()
	w.DeclareBinding(Binding{Group: 0, Index: 0, Name: "data", Kind: BindingStorageRW, Type: "array<f32, 64>"})
	w.ImplementEntryPoint(EntryCompute, "main", "@workgroup_size(64)",
		[]Param{{Name: "@builtin(global_invocation_id) id", Type: "vec3<u32>"}}, "",
		func(fb *FunctionBuilder) {
			fb.Assign("data[id.x]", "data[id.x] * 2.0")
		})
	p, err := w.Finish("double-fixed")
	require.NoError(t, err)

	out, err := NewSPIRVCompiler().Compile(p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out.SPIRV), 20)
	// SPIR-V magic number, little endian
	assert.Equal(t, []byte{0x03, 0x02, 0x23, 0x07}, out.SPIRV[:4])
	require.Len(t, out.Reflected, 1)
}

func TestNagaSPIRVRejectsRuntimeArrays(t *testing.T) {
	w := NewWriter()
	doubleKernel(w)
	p, err := w.Finish("double")
	require.NoError(t, err)

	_, err = NewSPIRVCompiler().Compile(p)
	assert.ErrorIs(t, err, ErrCompile)
}

func TestNestedTemplatesDoNotLexAsShift(t *testing.T) {
	w := NewWriter()
	w.DeclareBinding(Binding{Group: 0, Index: 0, Name: "pairs", Kind: BindingStorageRW, Type: "array<vec2<u32>>"})
	w.ImplementEntryPoint(EntryCompute, "main", "@workgroup_size(64)",
		[]Param{{Name: "@builtin(global_invocation_id) id", Type: "vec3<u32>"}}, "",
		func(fb *FunctionBuilder) {
			fb.Assign("pairs[id.x]", "pairs[id.x].yx")
		})
	p, err := w.Finish("swap")
	require.NoError(t, err)
	assert.Contains(t, p.Source, "array<vec2<u32> >")
	assert.NotContains(t, p.Source, ">>")

	_, err = NewNagaCompiler().Compile(p)
	require.NoError(t, err)
}

func TestNagaPropagatesFailure(t *testing.T) {
	w := NewWriter()
	w.DeclareBinding(Binding{Group: 0, Index: 0, Name: "data", Kind: BindingStorageRW, Type: "array<f32>"})
	w.ImplementEntryPoint(EntryCompute, "main", "@workgroup_size(1)", nil, "", func(fb *FunctionBuilder) {
		fb.Assign("data[0]", "undefinedValue")
	})
	p, err := w.Finish("broken")
	require.NoError(t, err)
	_, err = NewNagaCompiler().Compile(p)
	assert.ErrorIs(t, err, ErrCompile)
}

func TestMergeLayoutsOrsVisibility(t *testing.T) {
	vs := map[int]wgpu.BindGroupLayoutDescriptor{0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageVertex}}}}
	fs := map[int]wgpu.BindGroupLayoutDescriptor{0: {Entries: []wgpu.BindGroupLayoutEntry{
		{Binding: 1, Visibility: wgpu.ShaderStageFragment},
		{Binding: 0, Visibility: wgpu.ShaderStageFragment},
	}}}
	merged := MergeLayouts(vs, fs)
	require.Len(t, merged[0].Entries, 2)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, merged[0].Entries[0].Visibility)
	assert.Equal(t, uint32(1), merged[0].Entries[1].Binding)
}

func TestLayoutStruct(t *testing.T) {
	src := `struct Inner { a: vec3<f32>, b: f32, }
struct Outer { x: u32, inner: Inner, m: mat4x4<f32>, }`
	l, err := LayoutStruct(src, "Outer")
	require.NoError(t, err)
	inner, ok := l.Member("inner")
	require.True(t, ok)
	assert.Equal(t, uint64(16), inner.Offset)
	m, _ := l.Member("m")
	assert.Equal(t, uint64(32), m.Offset)
	assert.Equal(t, uint64(96), l.Size)

	_, err = LayoutStruct(src, "Nope")
	assert.Error(t, err)
}

func TestFunctionBuilderSwitchHasDefault(t *testing.T) {
	w := NewWriter()
	fn, err := w.ImplementFunction("pick", []Param{{Name: "i", Type: "u32"}}, "f32", func(fb *FunctionBuilder) {
		fb.Var("r", "f32", "0.0")
		fb.Switch("i", []SwitchCase{{Value: "1u", Body: func() { fb.Assign("r", "1.0") }}}, nil)
		fb.Return("r")
	})
	require.NoError(t, err)
	src := w.Source()
	assert.Contains(t, src, "default: {")
	assert.Contains(t, src, "fn pick(i: u32) -> f32 {")
	assert.Equal(t, "pick(2u)", w.Call(fn, "2u"))
}
