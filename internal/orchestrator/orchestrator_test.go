package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/generator"
	"git.home.luguber.info/inful/docpipe/internal/manifest"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/retry"
	"git.home.luguber.info/inful/docpipe/internal/source"
)

type fakeInstaller struct {
	mu           sync.Mutex
	calls        []string
	editableErr  error
	packagesErrs []error // consumed one per call
}

func (f *fakeInstaller) InstallEditable(_ context.Context, projectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "editable:"+projectPath)
	return f.editableErr
}

func (f *fakeInstaller) InstallPackages(_ context.Context, packages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "packages")
	if len(f.packagesErrs) > 0 {
		err := f.packagesErrs[0]
		f.packagesErrs = f.packagesErrs[1:]
		return err
	}
	return nil
}

// fakeGenerator records invocations and writes nothing.
type fakeGenerator struct {
	calls int
	err   error
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(context.Context, string, string, generator.Options) error {
	g.calls++
	return g.err
}

type fakeFetcher struct {
	errs  []error
	calls int
	path  string
}

func (f *fakeFetcher) Fetch(_ context.Context, _, target string) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if f.path != "" {
		return f.path, nil
	}
	return target, nil
}

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote")
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := r.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		writeFile(t, dir, name, content)
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}})
	require.NoError(t, err)
	return dir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func testPlan(command string) Plan {
	cfg := config.Defaults()
	cfg.Docs.Generator = config.GeneratorNative
	cfg.Verify.CheckLinks = true
	return PlanFromConfig(cfg, command)
}

// rstOnlyGenerator writes a page for each .rst source, the way sphinx-build
// does with its default source_suffix.
type rstOnlyGenerator struct{}

func (rstOnlyGenerator) Name() string { return config.GeneratorSphinx }

func (rstOnlyGenerator) Generate(_ context.Context, src, out string, _ generator.Options) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".rst" {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		page := filepath.Join(out, strings.TrimSuffix(rel, ".rst")+".html")
		if err := os.MkdirAll(filepath.Dir(page), 0o750); err != nil {
			return err
		}
		return os.WriteFile(page, []byte("<html><head><title>Doc</title></head><body><h1>Doc</h1></body></html>"), 0o600)
	})
}

func TestRunFullBuildProducesPagePerSource(t *testing.T) {
	remote := initRepo(t, map[string]string{
		"setup.py":             "from setuptools import setup\nsetup(name='nengo')\n",
		"docs/index.rst":       "Nengo\n=====\n\n.. toctree::\n\n   usage\n   api/networks\n   notes\n",
		"docs/usage.rst":       "Usage\n=====\n\nSee :doc:`api/networks`.\n",
		"docs/notes.txt":       "release notes\n",
		"docs/api/networks.md": "# Networks\n\nBack to [usage](../usage.rst).\n",
	})
	target := filepath.Join(t.TempDir(), "nengo")
	inst := &fakeInstaller{}
	o := New(source.NewFetcher(source.Options{}), inst, generator.NewNativeGenerator())

	plan := testPlan(CommandBuild)
	plan.RepositoryURL = remote
	plan.TargetPath = target

	report, err := o.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, report.Outcome)
	assert.Equal(t, []pipeline.StageName{
		pipeline.StageFetchSource, pipeline.StageInstallDev, pipeline.StageInstallDocTooling,
		pipeline.StageEnsureOutput, pipeline.StageGenerateDocs, pipeline.StageVerifyOutput,
	}, report.Stages)
	assert.Equal(t, []string{"editable:" + target, "packages"}, inst.calls)

	out := filepath.Join(target, "docs", "_build")
	for _, page := range []string{"index.html", "usage.html", "notes.html", "api/networks.html"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(page)))
	}
	assert.Equal(t, 4, report.PagesGenerated)

	m, err := manifest.Load(out)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, report.BuildID, m.BuildID)
	assert.Equal(t, config.GeneratorNative, m.Generator)
	assert.Len(t, m.Entries, 4)
}

func TestRunInstallDevFailureStopsBuild(t *testing.T) {
	src := t.TempDir()
	inst := &fakeInstaller{editableErr: errors.New("pip exited with code 1")}
	gen := &fakeGenerator{}
	o := New(nil, inst, gen)

	plan := testPlan(CommandBuild)
	plan.Stages = Stages{Install: true, Generate: true}
	plan.TargetPath = src

	report, err := o.Run(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInstallFailure)
	assert.Equal(t, []string{"editable:" + src}, inst.calls, "tooling install must not run")
	assert.Zero(t, gen.calls)

	assert.Equal(t, pipeline.OutcomeFailed, report.Outcome)
	failed, ok := report.FailedStage()
	require.True(t, ok)
	assert.Equal(t, pipeline.StageInstallDev, failed)
	for _, s := range []pipeline.StageName{pipeline.StageInstallDocTooling, pipeline.StageEnsureOutput, pipeline.StageGenerateDocs} {
		assert.Equal(t, pipeline.StageResultSkipped, report.StageResults[s], s)
		assert.False(t, report.Ran(s))
	}
	assert.NoDirExists(t, filepath.Join(src, "docs", "_build"))
}

func TestRunUnreachableSourceStopsBuild(t *testing.T) {
	inst := &fakeInstaller{}
	gen := &fakeGenerator{}
	o := New(source.NewFetcher(source.Options{}), inst, gen)

	plan := testPlan(CommandBuild)
	plan.RepositoryURL = "http://127.0.0.1:1/nengo.git"
	plan.TargetPath = filepath.Join(t.TempDir(), "nengo")

	report, err := o.Run(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.Empty(t, inst.calls)
	assert.Zero(t, gen.calls)
	assert.Equal(t, pipeline.StageResultFatal, report.StageResults[pipeline.StageFetchSource])
	assert.Equal(t, pipeline.StageResultSkipped, report.StageResults[pipeline.StageInstallDev])
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, pipeline.IssueSourceUnavailable, report.Issues[0].Code)
}

func TestFetchSourceNonEmptyTarget(t *testing.T) {
	remote := initRepo(t, map[string]string{"README": "x"})
	target := t.TempDir()
	writeFile(t, target, "keep.txt", "mine")

	_, err := New(source.NewFetcher(source.Options{}), nil, nil).FetchSource(context.Background(), remote, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.Equal(t, "mine", readFile(t, filepath.Join(target, "keep.txt")))
}

func TestFetchSourceWrapsForeignErrors(t *testing.T) {
	o := New(&fakeFetcher{errs: []error{errors.New("boom")}}, nil, nil)
	_, err := o.FetchSource(context.Background(), "https://example.com/x.git", "x")
	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
}

func TestEnsureOutputDirectoryIsIdempotent(t *testing.T) {
	o := New(nil, nil, nil)
	out := filepath.Join(t.TempDir(), "docs", "_build")

	require.NoError(t, o.EnsureOutputDirectory(out))
	assert.DirExists(t, out)
	writeFile(t, out, "old.html", "old")

	require.NoError(t, o.EnsureOutputDirectory(out))
	require.NoError(t, o.EnsureOutputDirectory(out))
	assert.Equal(t, "old", readFile(t, filepath.Join(out, "old.html")))
}

func TestGenerateDocsSingleHeading(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "output")
	writeFile(t, src, "index.rst", "Welcome to Nengo\n================\n")

	o := New(nil, nil, generator.NewNativeGenerator())
	require.NoError(t, o.EnsureOutputDirectory(out))
	require.NoError(t, o.GenerateDocs(context.Background(), src, out, testPlan(CommandGenerate).Generator))
	assert.Contains(t, readFile(t, filepath.Join(out, "index.html")), "Welcome to Nengo")
}

func TestGenerateDocsRequiresOutputDirectory(t *testing.T) {
	gen := &fakeGenerator{}
	err := New(nil, nil, gen).GenerateDocs(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "missing"), generator.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrGenerationFailure)
	assert.Zero(t, gen.calls)
}

func TestGenerateDocsWrapsGeneratorErrors(t *testing.T) {
	err := New(nil, nil, &fakeGenerator{err: errors.New("sphinx crashed")}).
		GenerateDocs(context.Background(), t.TempDir(), t.TempDir(), generator.Options{})
	assert.ErrorIs(t, err, pipeline.ErrGenerationFailure)
}

func TestRegenerationOverwritesOnlyRegeneratedPages(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "First\n=====\n")
	o := New(nil, nil, generator.NewNativeGenerator())

	plan := testPlan(CommandGenerate)
	plan.TargetPath = src
	_, err := o.Run(context.Background(), plan)
	require.NoError(t, err)

	out := filepath.Join(src, "docs", "_build")
	writeFile(t, out, "unrelated.html", "keep me")
	writeFile(t, src, "docs/index.rst", "Second\n======\n")

	report, err := o.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, report.Outcome)

	index := readFile(t, filepath.Join(out, "index.html"))
	assert.Contains(t, index, "Second")
	assert.NotContains(t, index, "First")
	assert.Equal(t, "keep me", readFile(t, filepath.Join(out, "unrelated.html")))
}

func TestCleanPolicyRemovesStaleOutput(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")
	writeFile(t, src, "docs/_build/stale.html", "stale")

	plan := testPlan(CommandGenerate)
	plan.TargetPath = src
	plan.OutputPolicy = config.OutputPolicyClean
	_, err := New(nil, nil, generator.NewNativeGenerator()).Run(context.Background(), plan)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(src, "docs", "_build", "stale.html"))
	assert.FileExists(t, filepath.Join(src, "docs", "_build", "index.html"))
}

func TestVerifyMissingPages(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")

	plan := testPlan(CommandGenerate)
	plan.TargetPath = src

	report, err := New(nil, nil, &fakeGenerator{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeWarning, report.Outcome)
	assert.Equal(t, pipeline.StageResultWarning, report.StageResults[pipeline.StageVerifyOutput])
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, pipeline.IssueMissingPage, report.Issues[0].Code)

	plan.Verify.Strict = true
	report, err = New(nil, nil, &fakeGenerator{}).Run(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrMissingPage)
	assert.ErrorIs(t, err, pipeline.ErrGenerationFailure)
	assert.Equal(t, pipeline.OutcomeFailed, report.Outcome)
}

func TestVerifyDisabled(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")
	plan := testPlan(CommandGenerate)
	plan.TargetPath = src
	plan.Verify.Enabled = false

	report, err := New(nil, nil, &fakeGenerator{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.NotContains(t, report.Stages, pipeline.StageVerifyOutput)
	assert.Equal(t, pipeline.OutcomeSuccess, report.Outcome)
}

func TestRetryTransientFetch(t *testing.T) {
	f := &fakeFetcher{errs: []error{&source.NetworkError{Op: "clone", URL: "u", Err: errors.New("connection refused")}, nil}}
	o := New(f, nil, nil, WithRetry(retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}))

	plan := testPlan(CommandFetch)
	plan.RepositoryURL = "https://example.com/nengo.git"
	plan.TargetPath = t.TempDir()
	report, err := o.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, 1, report.Retries)
}

func TestNoRetryByDefault(t *testing.T) {
	f := &fakeFetcher{errs: []error{&source.NetworkError{Op: "clone", URL: "u", Err: errors.New("connection refused")}, nil}}
	_, err := New(f, nil, nil).FetchSource(context.Background(), "https://example.com/nengo.git", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inst := &fakeInstaller{}

	plan := testPlan(CommandInstall)
	plan.TargetPath = t.TempDir()
	report, err := New(nil, inst, nil).Run(ctx, plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, pipeline.OutcomeCanceled, report.Outcome)
	assert.Empty(t, inst.calls)
}

func TestStagesFor(t *testing.T) {
	o := New(nil, nil, nil)
	cases := map[string][]pipeline.StageName{
		CommandFetch:    {pipeline.StageFetchSource},
		CommandInstall:  {pipeline.StageInstallDev, pipeline.StageInstallDocTooling},
		CommandGenerate: {pipeline.StageEnsureOutput, pipeline.StageGenerateDocs, pipeline.StageVerifyOutput},
		CommandBuild: {pipeline.StageFetchSource, pipeline.StageInstallDev, pipeline.StageInstallDocTooling,
			pipeline.StageEnsureOutput, pipeline.StageGenerateDocs, pipeline.StageVerifyOutput},
	}
	for cmd, want := range cases {
		t.Run(cmd, func(t *testing.T) {
			assert.Equal(t, want, pipeline.Names(o.Stages(testPlan(cmd))))
		})
	}
}

func TestPlanResolvesPathsAgainstSource(t *testing.T) {
	cfg := config.Defaults()
	cfg.Source.URL = "https://github.com/nengo/nengo.git"
	plan := PlanFromConfig(cfg, CommandBuild)

	assert.Equal(t, "nengo", plan.TargetPath)
	assert.Equal(t, filepath.Join("/src", "docs"), plan.DocsPath("/src"))
	assert.Equal(t, filepath.Join("/src", "docs", "_build"), plan.OutputPath("/src"))
	assert.Equal(t, []string{"numpydoc", "sphinx_rtd_theme"}, plan.Tooling)

	plan.OutputDir = "/var/www/docs"
	assert.Equal(t, "/var/www/docs", plan.OutputPath("/src"))
}

func TestSphinxBuildIgnoresNonRstFilesInDocs(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")
	writeFile(t, src, "docs/api/core.rst", "Core\n====\n")
	writeFile(t, src, "docs/requirements.txt", "numpydoc\n")
	writeFile(t, src, "docs/README.md", "# Docs\n")

	cfg := config.Defaults()
	cfg.Verify.Strict = true
	plan := PlanFromConfig(cfg, CommandGenerate)
	plan.TargetPath = src
	assert.Equal(t, config.SphinxSuffixes(), plan.Generator.Suffixes)

	report, err := New(nil, nil, rstOnlyGenerator{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, report.Outcome)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.PagesGenerated)
}

func TestExplicitSuffixesOverrideGeneratorDefault(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")
	writeFile(t, src, "docs/guide.md", "# Guide\n")

	cfg := config.Defaults()
	cfg.Docs.Suffixes = []string{".rst", ".md"}
	plan := PlanFromConfig(cfg, CommandGenerate)
	plan.TargetPath = src

	report, err := New(nil, nil, rstOnlyGenerator{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeWarning, report.Outcome)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, pipeline.IssueMissingPage, report.Issues[0].Code)
	assert.Equal(t, 1, report.PagesGenerated)
}

func TestPagesGeneratedCountsWrittenPagesWithoutVerify(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "docs/index.rst", "Title\n=====\n")
	writeFile(t, src, "docs/notes.txt", "notes\n")

	cfg := config.Defaults()
	cfg.Docs.Suffixes = config.DefaultSuffixes()
	cfg.Verify.Enabled = false
	plan := PlanFromConfig(cfg, CommandGenerate)
	plan.TargetPath = src

	report, err := New(nil, nil, rstOnlyGenerator{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PagesGenerated)
}
