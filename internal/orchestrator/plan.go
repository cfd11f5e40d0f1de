package orchestrator

import (
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/generator"
)

// Commands with a fixed stage selection.
const (
	CommandBuild    = "build"
	CommandFetch    = "fetch"
	CommandInstall  = "install"
	CommandGenerate = "generate"
)

// Stages selects which groups of stages a run includes.
type Stages struct {
	Fetch    bool // fetch_source
	Install  bool // install_dev, install_doc_tooling
	Generate bool // ensure_output, generate_docs, verify_output
}

// AllStages is the full build.
func AllStages() Stages { return Stages{Fetch: true, Install: true, Generate: true} }

// StagesFor returns the stage selection of a command. Unknown commands run everything.
func StagesFor(command string) Stages {
	switch command {
	case CommandFetch:
		return Stages{Fetch: true}
	case CommandInstall:
		return Stages{Install: true}
	case CommandGenerate:
		return Stages{Generate: true}
	default:
		return AllStages()
	}
}

// Plan holds everything one run needs.
type Plan struct {
	Command string
	BuildID string
	Stages  Stages

	RepositoryURL string
	// TargetPath is the checkout directory. When fetching is skipped it is
	// used as the existing source tree.
	TargetPath string

	// DocsDir and OutputDir are resolved against the source tree unless absolute.
	DocsDir   string
	OutputDir string

	Tooling      []string
	Generator    generator.Options
	OutputPolicy string // config.OutputPolicyMerge | config.OutputPolicyClean
	Verify       config.VerifyConfig
}

// PlanFromConfig derives a plan for command from cfg.
func PlanFromConfig(cfg *config.Config, command string) Plan {
	return Plan{
		Command:       command,
		Stages:        StagesFor(command),
		RepositoryURL: cfg.Source.URL,
		TargetPath:    cfg.SourceRoot(),
		DocsDir:       cfg.Docs.SourceDir,
		OutputDir:     cfg.Docs.OutputDir,
		Tooling:       slices.Clone(cfg.Install.Tooling),
		Generator:     generator.OptionsFromConfig(cfg.Docs),
		OutputPolicy:  cfg.Docs.OutputPolicy,
		Verify:        cfg.Verify,
	}
}

// DocsPath resolves the documentation source directory against sourceRoot.
func (p Plan) DocsPath(sourceRoot string) string { return resolveUnder(sourceRoot, p.DocsDir) }

// OutputPath resolves the output directory against sourceRoot.
func (p Plan) OutputPath(sourceRoot string) string { return resolveUnder(sourceRoot, p.OutputDir) }

func resolveUnder(root, p string) string {
	if filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}
