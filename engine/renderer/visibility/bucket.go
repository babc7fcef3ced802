package visibility

// Buckets is the compacted pixel list the compute resolve consumes: the covered pixels
// grouped by pipeline id, each group contiguous. BucketPixels keeps scan order inside a
// group; the GPU scatter does not.
type Buckets struct {
	// Counts holds the number of pixels per pipeline id.
	Counts []uint32
	// Starts holds the exclusive prefix sum of Counts.
	Starts []uint32
	// Pixels holds PackPixel values, bucket after bucket.
	Pixels []uint32
}

// Bucket returns the packed pixels of one pipeline id.
func (b Buckets) Bucket(pipelineID uint32) []uint32 {
	if int(pipelineID) >= len(b.Counts) {
		return nil
	}
	start := b.Starts[pipelineID]
	return b.Pixels[start : start+b.Counts[pipelineID]]
}

// BucketPixels is the reference of the reorder passes: count the covered pixels per
// pipeline id, prefix-sum the counts, then scatter every pixel to its bucket.
//
// Parameters:
//   - texels: the r channel of the visibility texture, row-major, PackNodePipeline values
//   - width: the texture width in pixels
//
// Returns:
//   - Buckets: the compacted list; background pixels are left out
func BucketPixels(texels []uint32, width uint32) Buckets {
	b := Buckets{
		Counts: make([]uint32, MaxPipelines),
		Starts: make([]uint32, MaxPipelines),
	}
	for _, t := range texels {
		node, pipeline := UnpackNodePipeline(t)
		if node != 0 {
			b.Counts[pipeline]++
		}
	}
	var total uint32
	for i, c := range b.Counts {
		b.Starts[i] = total
		total += c
	}
	b.Pixels = make([]uint32, total)
	cursor := make([]uint32, MaxPipelines)
	copy(cursor, b.Starts)
	for i, t := range texels {
		node, pipeline := UnpackNodePipeline(t)
		if node == 0 {
			continue
		}
		b.Pixels[cursor[pipeline]] = PackPixel(uint32(i)%width, uint32(i)/width)
		cursor[pipeline]++
	}
	return b
}
