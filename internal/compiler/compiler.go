package compiler

// Compile validates req and, if valid, returns the complete ffmpeg argument
// vector for it. It is pure: the same req always yields byte-identical
// output (§8 property 1), which is what makes optimistic layout swaps in
// the supervisor safe to build speculatively before tearing down the
// running process.
func Compile(req CompileRequest) ([]string, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	geoms, err := computeGeometry(req)
	if err != nil {
		return nil, err
	}

	volumes := req.Volumes
	if len(volumes) == 0 {
		volumes = make([]float64, len(geoms))
		for i := range volumes {
			volumes[i] = 1
		}
	}

	graph := buildFilterGraph(geoms, volumes)
	return buildArgs(req, graph), nil
}
