package bind_group_provider

import "github.com/Carmen-Shannon/oxy-castor/engine/renderer/backend"

// BindGroupProviderOption attaches resources at construction.
type BindGroupProviderOption func(*bindGroupProvider)

func WithBuffer(binding uint32, buf backend.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) { p.SetBuffer(binding, buf) }
}

func WithTextureView(binding uint32, view backend.ImageView) BindGroupProviderOption {
	return func(p *bindGroupProvider) { p.SetTextureView(binding, view) }
}

func WithSampler(binding uint32, s backend.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) { p.SetSampler(binding, s) }
}
