package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

// Options controls how a source tree is checked out.
type Options struct {
	Branch     string
	Depth      int
	OnExisting string // config.OnExistingFail | config.OnExistingReuse
	Auth       *config.AuthConfig
	Progress   io.Writer // receives go-git transfer progress; nil disables it
}

// OptionsFromConfig derives fetch options from the source section.
func OptionsFromConfig(sc config.SourceConfig) Options {
	return Options{Branch: sc.Branch, Depth: sc.Depth, OnExisting: sc.OnExisting, Auth: sc.Auth}
}

// Fetcher clones repositories.
type Fetcher struct {
	opts Options
}

// NewFetcher creates a fetcher with the given options.
func NewFetcher(opts Options) *Fetcher {
	if opts.OnExisting == "" {
		opts.OnExisting = config.OnExistingFail
	}
	return &Fetcher{opts: opts}
}

// Fetch clones repositoryURL into targetPath and returns the checkout path.
//
// A missing or empty target is cloned into. A non-empty target fails unless
// the fetcher was configured to reuse it, in which case it must be a git
// checkout and is fast-forwarded instead. A target directory created by a
// failed clone is removed again.
func (f *Fetcher) Fetch(ctx context.Context, repositoryURL, targetPath string) (string, error) {
	if repositoryURL == "" {
		return "", errors.ValidationError("repository URL is required").
			WithCause(pipeline.ErrSourceUnavailable).Build()
	}
	if targetPath == "" {
		targetPath = config.DefaultTargetPath(repositoryURL)
	}

	existed, empty, err := inspectTarget(targetPath)
	if err != nil {
		return "", errors.SourceError("cannot use target path").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, err)).
			WithContext("path", targetPath).Build()
	}
	if existed && !empty {
		if f.opts.OnExisting == config.OnExistingReuse {
			return f.update(ctx, repositoryURL, targetPath)
		}
		return "", errors.SourceError("target path is not empty").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, &TargetOccupiedError{Path: targetPath})).
			WithContext("path", targetPath).
			UserAction().Build()
	}

	auth, err := authMethod(f.opts.Auth)
	if err != nil {
		return "", errors.AuthError("failed to set up authentication").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, err)).Build()
	}

	cloneOptions := &git.CloneOptions{URL: repositoryURL, Auth: auth, Depth: f.opts.Depth, Progress: f.opts.Progress}
	if f.opts.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(f.opts.Branch)
		cloneOptions.SingleBranch = true
	}

	slog.Debug("Cloning repository", logfields.URL(repositoryURL), logfields.Path(targetPath), slog.String("branch", f.opts.Branch))
	repository, err := git.PlainCloneContext(ctx, targetPath, false, cloneOptions)
	if err != nil {
		if !existed {
			if rmErr := os.RemoveAll(targetPath); rmErr != nil {
				slog.Warn("Failed to remove partial checkout", logfields.Path(targetPath), logfields.Error(rmErr))
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("clone interrupted: %w", ctxErr)
		}
		return "", classifyGitError("clone", repositoryURL, err)
	}

	logCheckout("Repository cloned", repository, repositoryURL, targetPath)
	return targetPath, nil
}

// update fast-forwards an existing checkout.
func (f *Fetcher) update(ctx context.Context, repositoryURL, targetPath string) (string, error) {
	repository, err := git.PlainOpen(targetPath)
	if err != nil {
		return "", errors.SourceError("target path is not a git checkout").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, err)).
			WithContext("path", targetPath).Build()
	}
	wt, err := repository.Worktree()
	if err != nil {
		return "", classifyGitError("pull", repositoryURL, err)
	}
	auth, err := authMethod(f.opts.Auth)
	if err != nil {
		return "", errors.AuthError("failed to set up authentication").
			WithCause(fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, err)).Build()
	}

	pullOptions := &git.PullOptions{RemoteName: "origin", Auth: auth, Depth: f.opts.Depth, Progress: f.opts.Progress}
	if f.opts.Branch != "" {
		pullOptions.ReferenceName = plumbing.NewBranchReferenceName(f.opts.Branch)
		pullOptions.SingleBranch = true
	}

	slog.Debug("Updating existing checkout", logfields.URL(repositoryURL), logfields.Path(targetPath))
	if err := wt.PullContext(ctx, pullOptions); err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("pull interrupted: %w", ctxErr)
		}
		return "", classifyGitError("pull", repositoryURL, err)
	}

	logCheckout("Repository updated", repository, repositoryURL, targetPath)
	return targetPath, nil
}

// inspectTarget reports whether path exists and, if so, whether it is an empty directory.
func inspectTarget(path string) (existed, empty bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, true, nil
	}
	if err != nil {
		return false, false, err
	}
	if !info.IsDir() {
		return true, false, fmt.Errorf("%s is not a directory", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return true, false, err
	}
	return true, len(entries) == 0, nil
}

func logCheckout(msg string, repository *git.Repository, url, path string) {
	attrs := []any{logfields.URL(url), logfields.Path(path)}
	if ref, err := repository.Head(); err == nil {
		attrs = append(attrs, slog.String("commit", ref.Hash().String()[:8]))
	}
	slog.Info(msg, attrs...)
}

// HeadCommit returns the checked-out commit of the repository at path.
func HeadCommit(path string) (string, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	ref, err := repository.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}
