// Package source obtains the project source tree with go-git.
//
// Every failure, whether the remote is unreachable, authentication is
// rejected, the repository does not exist or the target directory is already
// occupied, is reported as a classified error matching
// pipeline.ErrSourceUnavailable.
package source
