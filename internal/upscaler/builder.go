package upscaler

import (
	"strconv"

	"github.com/backmassage/mangaup/internal/job"
)

// Build constructs the argument slice for one image, binary first:
//
//	<bin> -i <in> -o <out> -s <scale> -m <models> -n <denoise> [-t <tile>] -g <gpu>
//
// Tile size 0 means automatic and is left for the tool to decide, so -t is
// omitted.
func Build(binary, modelsDir string, entry job.FileEntry, spec job.Spec) []string {
	args := make([]string, 0, 16)
	args = append(args, binary,
		"-i", entry.Source,
		"-o", entry.Destination,
		"-s", strconv.Itoa(spec.Scale),
		"-m", modelsDir,
		"-n", strconv.Itoa(spec.Denoise),
	)
	if spec.TileSize > 0 {
		args = append(args, "-t", strconv.Itoa(spec.TileSize))
	}
	args = append(args, "-g", strconv.Itoa(spec.GPU))
	return args
}
