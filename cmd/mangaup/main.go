// Command mangaup batch-upscales manga pages with waifu2x-ncnn-vulkan.
//
// It resolves configuration (defaults, TOML file, environment, flags),
// checks that the upscaler and its models are installed, then walks the
// input folder and upscales every page, optionally zipping the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "mangaup: %v\n", ee.err)
		}
		return ee.code
	}
	// Flag parsing and other cobra errors.
	fmt.Fprintf(os.Stderr, "mangaup: %v\n", err)
	fmt.Fprintln(os.Stderr, "Run 'mangaup --help' for usage.")
	return exitFailure
}
