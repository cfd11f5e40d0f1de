package installer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

var _ PackageInstaller = (*PipInstaller)(nil)

func TestInstallEditablePip(t *testing.T) {
	r := &toolexec.RecordingRunner{}
	inst := NewPipInstaller(r, config.InstallConfig{Python: "python3"})

	require.NoError(t, inst.InstallEditable(context.Background(), "/src/nengo"))
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "python3", calls[0].Name)
	assert.Equal(t, []string{"-m", "pip", "install", "-e", "/src/nengo"}, calls[0].Args)
}

func TestInstallEditableSetupPy(t *testing.T) {
	r := &toolexec.RecordingRunner{}
	inst := NewPipInstaller(r, config.InstallConfig{Python: "python", Method: config.InstallMethodSetupPy})

	require.NoError(t, inst.InstallEditable(context.Background(), "/src/nengo"))
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"setup.py", "develop"}, calls[0].Args)
	assert.Equal(t, "/src/nengo", calls[0].Dir)
}

func TestInstallPackagesFlags(t *testing.T) {
	r := &toolexec.RecordingRunner{}
	inst := NewPipInstaller(r, config.InstallConfig{
		Python:    "python3",
		Upgrade:   true,
		IndexURL:  "https://pypi.internal/simple",
		ExtraArgs: []string{"--quiet"},
	})

	require.NoError(t, inst.InstallPackages(context.Background(), []string{"numpydoc", "sphinx_rtd_theme"}))
	assert.Equal(t, []string{"-m", "pip", "install", "--upgrade", "--index-url", "https://pypi.internal/simple", "--quiet", "numpydoc", "sphinx_rtd_theme"}, r.Calls()[0].Args)
}

func TestInstallPackagesEmptyIsNoop(t *testing.T) {
	r := &toolexec.RecordingRunner{}
	require.NoError(t, NewPipInstaller(r, config.InstallConfig{}).InstallPackages(context.Background(), nil))
	assert.Empty(t, r.Calls())
}

func TestInstallFailureIsClassified(t *testing.T) {
	r := &toolexec.RecordingRunner{Fail: func(toolexec.Command) error {
		return &toolexec.ExitError{Result: toolexec.Result{ExitCode: 1, Tail: "ERROR: No matching distribution found for numpydocx"}, Err: errors.New("exit status 1")}
	}}
	err := NewPipInstaller(r, config.InstallConfig{}).InstallPackages(context.Background(), []string{"numpydocx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInstallFailure)
	assert.ErrorIs(t, err, toolexec.ErrToolFailed)

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryInstall, ce.Category())
	out, _ := ce.Context().GetString("output")
	assert.Contains(t, out, "No matching distribution")
}

func TestInstallCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPipInstaller(&toolexec.RecordingRunner{}, config.InstallConfig{}).InstallEditable(ctx, ".")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, pipeline.ErrInstallFailure)
}

func TestInstallRetryableOnlyForIndexOutages(t *testing.T) {
	fail := func(tail string) error {
		r := &toolexec.RecordingRunner{Fail: func(toolexec.Command) error {
			return &toolexec.ExitError{Result: toolexec.Result{ExitCode: 1, Tail: tail}, Err: errors.New("exit status 1")}
		}}
		return NewPipInstaller(r, config.InstallConfig{}).InstallPackages(context.Background(), []string{"numpydoc"})
	}

	assert.True(t, IsRetryable(fail("WARNING: Retrying ... NewConnectionError('Temporary failure in name resolution')")))
	assert.False(t, IsRetryable(fail("ERROR: No matching distribution found for numpydoc")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
