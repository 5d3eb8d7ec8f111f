package upscaler

import (
	"fmt"
	"regexp"
	"strings"
)

// UpscaleError reports a failed image. It is recoverable at batch level:
// the dispatcher records it and moves on.
type UpscaleError struct {
	Path     string // Source image.
	ExitCode int    // Process exit code; 0 when the process succeeded but the output was bad.
	Stderr   string // Tail of the tool's stderr.
	Err      error
}

func (e *UpscaleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "upscale %s", e.Path)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpscaleError) Unwrap() error { return e.Err }

// Hint returns a short remediation message for the failure, or "".
func (e *UpscaleError) Hint() string { return Hint(e.Stderr) }

// MissingDependencyError reports an absent executable or model. It is
// fatal: nothing can be processed without them.
type MissingDependencyError struct {
	Name string // "waifu2x-ncnn-vulkan", "models-cunet", ...
	Path string
	Err  error
}

func (e *MissingDependencyError) Error() string {
	msg := fmt.Sprintf("missing dependency %s at %s", e.Name, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingDependencyError) Unwrap() error { return e.Err }

// Pre-compiled patterns for classifying waifu2x-ncnn-vulkan stderr. Checked
// in order by [Hint]; the first match wins.
var (
	reNoVulkan = regexp.MustCompile(
		`(?i)vkCreateInstance failed|vulkan.*not found|no vulkan device|` +
			`libvulkan\.so.*cannot open`)

	reBadGPU = regexp.MustCompile(
		`(?i)invalid gpu device|gpu id .* out of range`)

	reOutOfMemory = regexp.MustCompile(
		`(?i)vkAllocateMemory failed|out of (device )?memory|` +
			`VK_ERROR_OUT_OF_(DEVICE|HOST)_MEMORY`)

	reModelLoad = regexp.MustCompile(
		`(?i)fopen .*\.(param|bin) failed|load_param.* failed|load_model.* failed`)

	reDecode = regexp.MustCompile(`(?i)decode image .* failed`)

	reEncode = regexp.MustCompile(`(?i)encode image .* failed`)
)

// Hint maps known stderr failures to a remediation message.
func Hint(stderr string) string {
	switch {
	case stderr == "":
		return ""
	case reNoVulkan.MatchString(stderr):
		return "no usable Vulkan driver found; install GPU drivers with Vulkan support"
	case reBadGPU.MatchString(stderr):
		return "GPU id not available; run with --list-gpus to see valid ids"
	case reOutOfMemory.MatchString(stderr):
		return "GPU ran out of memory; try a smaller --tile-size (e.g. 100)"
	case reModelLoad.MatchString(stderr):
		return "model files could not be loaded; reinstall with --download"
	case reDecode.MatchString(stderr):
		return "input image could not be decoded; the file may be corrupt"
	case reEncode.MatchString(stderr):
		return "output could not be written; check disk space and permissions"
	default:
		return ""
	}
}

// tail returns at most the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
