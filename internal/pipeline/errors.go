package pipeline

import "errors"

// Sentinels for the three failure classes of a documentation build. Every
// error produced by the corresponding stage matches one of these with errors.Is.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrInstallFailure    = errors.New("install failure")
	ErrGenerationFailure = errors.New("generation failure")
)

// Secondary sentinels used for issue classification.
var (
	ErrOutputDirectory = errors.New("output directory unusable")
	ErrMissingPage     = errors.New("missing output page")
	ErrBrokenLink      = errors.New("broken link")
)
