// Package check provides system diagnostics (mangaup check, --list-gpus,
// --list-models) and pre-run dependency validation (CheckDeps) for the
// waifu2x-ncnn-vulkan executable and its model weights.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/models"
	"github.com/backmassage/mangaup/internal/upscaler"
)

// ErrVulkaninfoNotFound is returned by DetectGPUs when vulkaninfo is not on PATH.
var ErrVulkaninfoNotFound = errors.New("vulkaninfo not found on PATH")

const gpuProbeTimeout = 10 * time.Second

var reDeviceName = regexp.MustCompile(`deviceName\s*=\s*(.+)`)

// Logger is the minimal logging interface needed by the reports in this
// package. Defined here so check stays testable without the logging package.
type Logger interface {
	Info(string, ...any)
	Success(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
	Debug(bool, string, ...any)
}

// GPU is one Vulkan device as numbered by the upscaler's -g flag.
type GPU struct {
	ID   int
	Name string
}

// CheckDeps is the pre-run validation: the named model must be known and
// both the executable and its weights installed. Failures are
// *upscaler.MissingDependencyError except for an unknown model name.
func CheckDeps(p models.Paths, model string) error {
	m, err := models.Lookup(model)
	if err != nil {
		return err
	}
	if err := models.Status(p, m); err != nil {
		return err
	}
	info, err := os.Stat(p.Binary())
	if err != nil {
		return &upscaler.MissingDependencyError{Name: upscaler.BinaryName, Path: p.Binary(), Err: err}
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return &upscaler.MissingDependencyError{Name: upscaler.BinaryName, Path: p.Binary(), Err: errors.New("not executable")}
	}
	return nil
}

// DetectGPUs lists Vulkan devices using vulkaninfo. An empty list with a
// nil error means vulkaninfo ran but reported no devices.
func DetectGPUs(ctx context.Context) ([]GPU, error) {
	return detectGPUs(ctx, "vulkaninfo", runtime.GOOS)
}

func detectGPUs(ctx context.Context, bin, goos string) ([]GPU, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, ErrVulkaninfoNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, gpuProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, vulkaninfoArgs(goos)...).Output()
	if err != nil {
		return nil, fmt.Errorf("vulkaninfo: %w", err)
	}
	return ParseVulkanInfo(string(out)), nil
}

// vulkaninfoArgs returns the arguments for a compact device listing. The
// Windows build historically lacked --summary.
func vulkaninfoArgs(goos string) []string {
	if goos == "windows" {
		return nil
	}
	return []string{"--summary"}
}

// ParseVulkanInfo extracts device names from vulkaninfo output, numbered
// in order of appearance.
func ParseVulkanInfo(out string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(out, "\n") {
		m := reDeviceName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		gpus = append(gpus, GPU{ID: len(gpus), Name: name})
	}
	return gpus
}

// ListGPUs prints detected devices for --list-gpus. It returns false when
// none were found.
func ListGPUs(ctx context.Context, log Logger) bool {
	gpus, err := DetectGPUs(ctx)
	return reportGPUs(log, runtime.GOOS, gpus, err)
}

func reportGPUs(log Logger, goos string, gpus []GPU, err error) bool {
	if err != nil || len(gpus) == 0 {
		if err != nil {
			log.Warn("%v", err)
		}
		log.Warn("No Vulkan GPUs detected or vulkaninfo not available")
		log.Info("Make sure Vulkan drivers are installed and vulkaninfo is on PATH")
		log.Info("%s", installHint(goos))
		return false
	}
	log.Success("Found %d Vulkan device(s)", len(gpus))
	for _, g := range gpus {
		log.Info("  GPU %d: %s", g.ID, g.Name)
	}
	log.Info("To use a specific GPU, add: --gpu %d", gpus[0].ID)
	return true
}

func installHint(goos string) string {
	if goos == "linux" {
		return "Install vulkan-tools: sudo apt install vulkan-tools"
	}
	return "Install the Vulkan SDK from: https://vulkan.lunarg.com/"
}

// ListModels prints every registered model with its install status, then
// the quality presets that can be combined with any of them.
func ListModels(p models.Paths, log Logger) {
	defer listPresets(log)
	for _, m := range models.All() {
		log.Info("%s", m.Name)
		log.Info("  Description: %s", m.Description)
		log.Info("  Scale: %dx", m.Scale)
		if err := models.Status(p, m); err != nil {
			log.Warn("  Status: not installed (%v)", err)
			log.Info("  Install: mangaup --download %s", m.Name)
			continue
		}
		log.Success("  Status: installed")
	}
}

func listPresets(log Logger) {
	log.Info("Quality presets (-q):")
	for _, ps := range job.Presets() {
		tile := "auto"
		if ps.TileSize > 0 {
			tile = fmt.Sprint(ps.TileSize)
		}
		log.Info("  %-9s denoise %d, tile %s", ps.Name, ps.Denoise, tile)
	}
}

// RunCheck runs `mangaup check`: tool home layout, the selected model and
// GPU visibility. It returns false when the selected model cannot run.
// Missing GPUs only warn; vulkaninfo is not required by the upscaler.
func RunCheck(ctx context.Context, p models.Paths, model string, gpu int, log Logger) bool {
	log.Info("=== System Check ===")
	log.Info("Home: %s", p.Home)

	ok := true
	if err := CheckDeps(p, model); err != nil {
		log.Error("%v", err)
		var missing *upscaler.MissingDependencyError
		if errors.As(err, &missing) {
			log.Info("Run: mangaup --download %s", model)
		}
		ok = false
	} else {
		log.Success("%s: %s", upscaler.BinaryName, p.Binary())
		m, _ := models.Lookup(model)
		log.Success("Model %s: %s", m.Name, p.ModelDir(m))
	}

	gpus, err := DetectGPUs(ctx)
	switch {
	case err != nil:
		log.Warn("GPU listing unavailable: %v", err)
	case len(gpus) == 0:
		log.Warn("vulkaninfo reported no devices")
	default:
		found := false
		for _, g := range gpus {
			log.Info("  GPU %d: %s", g.ID, g.Name)
			found = found || g.ID == gpu
		}
		if !found {
			log.Warn("Configured GPU %d not among %d detected device(s)", gpu, len(gpus))
		}
	}
	return ok
}
