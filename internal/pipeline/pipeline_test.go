package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/backmassage/mangaup/internal/archive"
	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/history"
	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/logging"
	"github.com/backmassage/mangaup/internal/naming"
	"github.com/backmassage/mangaup/internal/upscaler"
	"github.com/backmassage/mangaup/internal/upscaler/mocks"
)

// --- Helpers ---

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("img:"+name), 0o644))
	return p
}

func basenames(entries []job.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = filepath.Base(e.Source)
	}
	return out
}

func quietLogger() *logging.Logger { return logging.New(io.Discard, io.Discard) }

// copyInvoker stands in for the upscaler: it copies the source to the
// destination, or fails for names listed in fail ("ch1/002.png" or
// "002.png" in flat mode).
type copyInvoker struct {
	fail  map[string]bool
	calls []string
}

func (c *copyInvoker) Invoke(_ context.Context, e job.FileEntry, _ job.Spec) error {
	name := displayName(e)
	c.calls = append(c.calls, name)
	if c.fail[name] {
		return &upscaler.UpscaleError{Path: e.Source, ExitCode: 1, Err: errors.New("exit status 1")}
	}
	if err := os.MkdirAll(filepath.Dir(e.Destination), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(e.Source)
	if err != nil {
		return err
	}
	return os.WriteFile(e.Destination, data, 0o644)
}

type fakeRecorder struct{ runs []history.Run }

func (f *fakeRecorder) Record(_ context.Context, r history.Run) error {
	f.runs = append(f.runs, r)
	return nil
}

type fakePublisher struct {
	paths []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, zipPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, zipPath)
	return "s3://bucket/" + filepath.Base(zipPath), nil
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// --- Discovery ---

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"001.png", true},
		{"001.PNG", true},
		{"cover.jpg", true},
		{"cover.JPEG", true},
		{"page.webp", true},
		{"page.gif", false},
		{"notes.txt", false},
		{"png", false},
		{"archive.png.zip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupported(tt.name), tt.name)
	}
}

func TestFlat_FiltersAndSorts(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "010.png")
	touch(t, in, "002.JPG")
	touch(t, in, "001.webp")
	touch(t, in, "readme.txt")
	touch(t, in, "._001.png")
	touch(t, filepath.Join(in, "sub.png"), "nested.png")

	entries, err := Collect(Flat(in, "/out"))
	require.NoError(t, err)
	assert.Equal(t, []string{"001.webp", "002.JPG", "010.png"}, basenames(entries))

	for _, e := range entries {
		assert.Empty(t, e.Chapter)
		assert.Equal(t, filepath.Join("/out", filepath.Base(e.Source)), e.Destination)
	}
}

func TestFlat_RestartableAndStoppable(t *testing.T) {
	in := t.TempDir()
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		touch(t, in, n)
	}
	seq := Flat(in, "/out")

	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestFlat_NFCOrdering(t *testing.T) {
	in := t.TempDir()
	decomposed := "e\u0301.png" // "é" as e + combining acute
	touch(t, in, decomposed)
	touch(t, in, "f.png")

	entries, err := Collect(Flat(in, "/out"))
	require.NoError(t, err)
	assert.Equal(t, []string{"f.png", decomposed}, basenames(entries))
}

func TestFlat_EmptyAndMissing(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "notes.txt")

	_, err := Collect(Flat(in, "/out"))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Collect(Flat(filepath.Join(in, "missing"), "/out"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyInput)
}

func TestNested_ChaptersInOrder(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(in, "upscaled") // --subdir layout
	touch(t, filepath.Join(in, "Chapter 02"), "001.png")
	touch(t, filepath.Join(in, "Chapter 01"), "002.png")
	touch(t, filepath.Join(in, "Chapter 01"), "001.png")
	touch(t, filepath.Join(in, ".thumbs"), "001.png")
	touch(t, out, "old.png")
	touch(t, in, "loose.png")

	chapters, err := Chapters(in, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chapter 01", "Chapter 02"}, chapters)

	entries, err := Collect(Nested(in, out))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, job.FileEntry{
		Source:      filepath.Join(in, "Chapter 01", "001.png"),
		Chapter:     "Chapter 01",
		Destination: filepath.Join(out, "Chapter 01", "001.png"),
	}, entries[0])
	assert.Equal(t, "002.png", filepath.Base(entries[1].Source))
	assert.Equal(t, "Chapter 02", entries[2].Chapter)
}

// --- Dispatcher ---

func entriesFor(n int) []job.FileEntry {
	out := make([]job.FileEntry, n)
	for i := range out {
		name := string(rune('a'+i)) + ".png"
		out[i] = job.FileEntry{Source: "/in/" + name, Destination: "/out/" + name}
	}
	return out
}

func TestDispatcher_ContinuesPastUpscaleError(t *testing.T) {
	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	entries := entriesFor(3)

	gomock.InOrder(
		inv.EXPECT().Invoke(gomock.Any(), entries[0], gomock.Any()).Return(nil),
		inv.EXPECT().Invoke(gomock.Any(), entries[1], gomock.Any()).
			Return(&upscaler.UpscaleError{Path: entries[1].Source, ExitCode: 255, Stderr: "vkAllocateMemory failed"}),
		inv.EXPECT().Invoke(gomock.Any(), entries[2], gomock.Any()).Return(nil),
	)

	d := &Dispatcher{Invoker: inv, Log: quietLogger()}
	res, err := d.Run(context.Background(), job.Spec{Scale: 2}, entries)
	require.NoError(t, err)

	assert.Equal(t, Completed, d.State())
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []job.FileEntry{entries[1]}, res.Failed)
	assert.False(t, res.Interrupted)
}

func TestDispatcher_AbortsOnMissingDependency(t *testing.T) {
	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	entries := entriesFor(3)
	missing := &upscaler.MissingDependencyError{Name: upscaler.BinaryName, Path: "/bin/x"}

	inv.EXPECT().Invoke(gomock.Any(), entries[0], gomock.Any()).Return(nil)
	inv.EXPECT().Invoke(gomock.Any(), entries[1], gomock.Any()).Return(missing)

	d := &Dispatcher{Invoker: inv, Log: quietLogger()}
	res, err := d.Run(context.Background(), job.Spec{}, entries)

	var md *upscaler.MissingDependencyError
	require.ErrorAs(t, err, &md)
	assert.Equal(t, Aborted, d.State())
	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, res.Failed)
}

func TestDispatcher_InterruptStopsBeforeNextEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	entries := entriesFor(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv.EXPECT().Invoke(gomock.Any(), entries[0], gomock.Any()).
		DoAndReturn(func(context.Context, job.FileEntry, job.Spec) error {
			cancel() // SIGINT arrives while the first image is being processed
			return nil
		})

	d := &Dispatcher{Invoker: inv, Log: quietLogger()}
	res, err := d.Run(ctx, job.Spec{}, entries)
	require.NoError(t, err)

	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Processed())
	assert.Equal(t, Aborted, d.State())
	assert.False(t, res.Clean())
}

func TestDispatcher_EmptyStaysIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := &Dispatcher{Invoker: mocks.NewMockInvoker(ctrl), Log: quietLogger()}
	res, err := d.Run(context.Background(), job.Spec{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Idle, d.State())
	assert.Zero(t, res.Total)
	assert.Equal(t, "idle", d.State().String())
}

func TestDispatcher_SkipExistingAndDryRun(t *testing.T) {
	out := t.TempDir()
	existing := touch(t, out, "a.png")
	entries := []job.FileEntry{
		{Source: "/in/a.png", Destination: existing},
		{Source: "/in/b.png", Destination: filepath.Join(out, "b.png")},
	}

	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	inv.EXPECT().Invoke(gomock.Any(), entries[1], gomock.Any()).Return(nil)

	d := &Dispatcher{Invoker: inv, Log: quietLogger(), SkipExisting: true}
	res, err := d.Run(context.Background(), job.Spec{}, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Succeeded)
	assert.True(t, res.Clean())

	dry := &Dispatcher{Invoker: mocks.NewMockInvoker(ctrl), Log: quietLogger(), DryRun: true}
	res, err = dry.Run(context.Background(), job.Spec{}, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded, "dry run never invokes the upscaler")
}

type countingProgress struct {
	added   int64
	items   []string
	cleared int
}

func (c *countingProgress) Add(n int64, item string) { c.added += n; c.items = append(c.items, item) }
func (c *countingProgress) Clear()                   { c.cleared++ }

func TestDispatcher_AdvancesProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	entries := entriesFor(2)
	entries[1].Chapter = "ch1"
	inv.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	bar := &countingProgress{}
	d := &Dispatcher{Invoker: inv, Log: quietLogger(), Progress: bar}
	_, err := d.Run(context.Background(), job.Spec{}, entries)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bar.added)
	assert.Equal(t, []string{"a.png", "ch1/b.png"}, bar.items)
}

// --- Run ---

func runConfig(input string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.InputDir = input
	cfg.HistoryEnabled = false
	return &cfg
}

func testDeps(inv upscaler.Invoker, input string) Deps {
	return Deps{
		Invoker:  inv,
		Archiver: &archive.Archiver{Protected: []string{input}},
		RunID:    "test-run",
	}
}

func TestRun_FlatThreeImages(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	for _, n := range []string{"001.png", "002.png", "003.png"} {
		touch(t, in, n)
	}
	inv := &copyInvoker{}

	stats, err := Run(context.Background(), runConfig(in), quietLogger(), testDeps(inv, in))
	require.NoError(t, err)

	out := filepath.Join(root, "vol1_upscaled")
	assert.Equal(t, out, stats.OutputDir)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Empty(t, stats.Failed)
	for _, n := range []string{"001.png", "002.png", "003.png"} {
		assert.FileExists(t, filepath.Join(out, n))
	}
	assert.Equal(t, []string{"001.png", "002.png", "003.png"}, inv.calls)
}

func TestRun_NestedZipChapters(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "series")
	touch(t, filepath.Join(in, "ch1"), "001.png")
	touch(t, filepath.Join(in, "ch1"), "002.png")
	for _, n := range []string{"001.png", "002.png", "003.png"} {
		touch(t, filepath.Join(in, "ch2"), n)
	}

	cfg := runConfig(in)
	cfg.Nested = true
	cfg.ZipChapters = true
	out := filepath.Join(root, "out")
	cfg.OutputDir = out

	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Chapters)
	assert.Equal(t, 5, stats.Succeeded)
	assert.Equal(t, []string{filepath.Join(out, "ch1.zip"), filepath.Join(out, "ch2.zip")}, stats.Archives)

	assert.NoDirExists(t, filepath.Join(out, "ch1"))
	assert.NoDirExists(t, filepath.Join(out, "ch2"))
	assert.Equal(t, []string{"ch1/001.png", "ch1/002.png"}, zipNames(t, filepath.Join(out, "ch1.zip")))
	assert.Len(t, zipNames(t, filepath.Join(out, "ch2.zip")), 3)

	// Input untouched.
	assert.FileExists(t, filepath.Join(in, "ch1", "001.png"))
	assert.FileExists(t, filepath.Join(in, "ch2", "003.png"))
}

func TestRun_FailedChapterIsNotArchived(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "series")
	touch(t, filepath.Join(in, "ch1"), "001.png")
	touch(t, filepath.Join(in, "ch1"), "002.png")
	touch(t, filepath.Join(in, "ch2"), "001.png")

	cfg := runConfig(in)
	cfg.Nested = true
	cfg.ZipChapters = true
	inv := &copyInvoker{fail: map[string]bool{"ch1/002.png": true}}
	var errOut bytes.Buffer

	stats, err := Run(context.Background(), cfg, logging.New(io.Discard, &errOut), testDeps(inv, in))
	require.NoError(t, err)

	out := stats.OutputDir
	assert.Len(t, stats.Failed, 1)
	assert.Len(t, stats.FailedIn("ch1"), 1)
	assert.Contains(t, errOut.String(), "[ERROR]   ch1: 1 page\n")
	assert.Contains(t, errOut.String(), "[ERROR]     002.png\n")
	assert.NotContains(t, errOut.String(), "ch2:")
	assert.DirExists(t, filepath.Join(out, "ch1"), "chapter with failures kept as a folder")
	assert.NoFileExists(t, filepath.Join(out, "ch1.zip"))
	assert.FileExists(t, filepath.Join(out, "ch2.zip"))
	assert.Equal(t, []string{"ch1/001.png", "ch1/002.png", "ch2/001.png"}, inv.calls, "every entry attempted")
}

func TestRun_ZipWholeOutput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")
	touch(t, in, "002.png")

	cfg := runConfig(in)
	cfg.ZipOutput = true
	pub := &fakePublisher{}
	deps := testDeps(&copyInvoker{}, in)
	deps.Publisher = pub

	stats, err := Run(context.Background(), cfg, quietLogger(), deps)
	require.NoError(t, err)

	zipPath := filepath.Join(root, "vol1_upscaled.zip")
	assert.Equal(t, []string{zipPath}, stats.Archives)
	assert.Equal(t, []string{"vol1_upscaled/001.png", "vol1_upscaled/002.png"}, zipNames(t, zipPath))
	assert.NoDirExists(t, filepath.Join(root, "vol1_upscaled"))
	assert.Equal(t, []string{zipPath}, pub.paths)
	assert.Equal(t, 1, stats.Published)
}

func TestRun_ZipSkippedWhenAnyFileFails(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")
	touch(t, in, "002.png")

	cfg := runConfig(in)
	cfg.ZipOutput = true
	inv := &copyInvoker{fail: map[string]bool{"001.png": true}}

	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(inv, in))
	require.NoError(t, err)
	assert.Empty(t, stats.Archives)
	assert.DirExists(t, filepath.Join(root, "vol1_upscaled"))
	assert.NoFileExists(t, filepath.Join(root, "vol1_upscaled.zip"))
}

func TestRun_PublishFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")

	cfg := runConfig(in)
	cfg.ZipOutput = true
	deps := testDeps(&copyInvoker{}, in)
	deps.Publisher = &fakePublisher{err: errors.New("access denied")}

	stats, err := Run(context.Background(), cfg, quietLogger(), deps)
	require.NoError(t, err)
	assert.Len(t, stats.Archives, 1)
	assert.FileExists(t, stats.Archives[0])
	assert.Zero(t, stats.Published)
}

func TestRun_ZipChaptersWithoutNestedIsIgnored(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")

	cfg := runConfig(in)
	cfg.ZipChapters = true

	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	require.NoError(t, err)
	assert.Empty(t, stats.Archives)
	assert.DirExists(t, stats.OutputDir)
}

func TestRun_NestedWithoutChaptersFallsBackToFlat(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "oneshot")
	touch(t, in, "001.png")

	cfg := runConfig(in)
	cfg.Nested = true

	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	require.NoError(t, err)
	assert.Zero(t, stats.Chapters)
	assert.FileExists(t, filepath.Join(root, "oneshot_upscaled", "001.png"))
}

func TestRun_SubdirNestedSecondRun(t *testing.T) {
	in := t.TempDir()
	touch(t, filepath.Join(in, "ch1"), "001.png")

	cfg := runConfig(in)
	cfg.Nested = true
	cfg.UseSubdir = true

	_, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(in, "upscaled", "ch1", "001.png"))

	// The output folder now sits inside the input; it must not become a chapter.
	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chapters)
}

func TestRun_EmptyInput(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "notes.txt")

	_, err := Run(context.Background(), runConfig(in), quietLogger(), testDeps(&copyInvoker{}, in))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRun_MissingInput(t *testing.T) {
	in := filepath.Join(t.TempDir(), "nope")
	_, err := Run(context.Background(), runConfig(in), quietLogger(), testDeps(&copyInvoker{}, in))

	var cerr *naming.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestRun_OutputEqualsInput(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "001.png")
	cfg := runConfig(in)
	cfg.OutputDir = in

	_, err := Run(context.Background(), cfg, quietLogger(), testDeps(&copyInvoker{}, in))
	var cerr *naming.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestRun_OutputSymlinkToInput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	src := touch(t, in, "001.png")
	link := filepath.Join(root, "out")
	if err := os.Symlink(in, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	cfg := runConfig(in)
	cfg.OutputDir = link

	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	inv.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := Run(context.Background(), cfg, quietLogger(), testDeps(inv, in))
	var cerr *naming.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "img:001.png", string(data), "source page untouched")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")

	cfg := runConfig(in)
	cfg.DryRun = true
	cfg.ZipOutput = true
	inv := &copyInvoker{}

	stats, err := Run(context.Background(), cfg, quietLogger(), testDeps(inv, in))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Empty(t, inv.calls)
	assert.NoDirExists(t, filepath.Join(root, "vol1_upscaled"))
}

func TestRun_MissingDependencyIsFatalButRecorded(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")
	touch(t, in, "002.png")

	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	inv.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&upscaler.MissingDependencyError{Name: upscaler.BinaryName, Path: "/x"}).Times(1)

	rec := &fakeRecorder{}
	deps := testDeps(inv, in)
	deps.History = rec

	stats, err := Run(context.Background(), runConfig(in), quietLogger(), deps)
	var md *upscaler.MissingDependencyError
	require.ErrorAs(t, err, &md)
	assert.Equal(t, 2, stats.Total)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "test-run", rec.runs[0].ID)
}

func TestRun_RecordsHistory(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "vol1")
	touch(t, in, "001.png")
	touch(t, in, "002.png")

	cfg := runConfig(in)
	cfg.Quality = config.QualityBest
	rec := &fakeRecorder{}
	deps := testDeps(&copyInvoker{fail: map[string]bool{"002.png": true}}, in)
	deps.History = rec

	_, err := Run(context.Background(), cfg, quietLogger(), deps)
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	r := rec.runs[0]
	assert.Equal(t, "quality", r.Preset)
	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, []string{filepath.Join(in, "002.png")}, r.Failed)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
}

func TestRun_InterruptedSkipsArchiving(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "series")
	touch(t, filepath.Join(in, "ch1"), "001.png")
	touch(t, filepath.Join(in, "ch2"), "001.png")

	cfg := runConfig(in)
	cfg.Nested = true
	cfg.ZipChapters = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	inv := mocks.NewMockInvoker(ctrl)
	inv.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e job.FileEntry, s job.Spec) error {
			cancel()
			return (&copyInvoker{}).Invoke(ctx, e, s)
		}).Times(1)

	stats, err := Run(ctx, cfg, quietLogger(), testDeps(inv, in))
	require.NoError(t, err)
	assert.True(t, stats.Interrupted)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Empty(t, stats.Archives)
}
