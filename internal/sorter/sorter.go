package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"stlpipe/internal/classify"
	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/fileutil"
	"stlpipe/internal/logging"
	"stlpipe/internal/textutil"
)

// Input describes one extracted archive.
type Input struct {
	ArtifactName string
	// SourceRoot is the directory the entries were extracted into.
	SourceRoot string
	Entries    []extract.Entry
	Rejected   []extract.Rejection
}

// Bundle is the sorted output for one archive.
type Bundle struct {
	ProjectDir  string
	ImagesDir   string
	Images      []string
	ArchivePath string
	// Models holds member names inside ArchivePath, in archive order.
	Models   []string
	Ignored  []string
	Filtered []string
	Rejected []string
	Warnings []string
}

// ModelCount reports how many model files went into the archive.
func (b *Bundle) ModelCount() int {
	if b == nil {
		return 0
	}
	return len(b.Models)
}

// Options control output layout.
type Options struct {
	PreserveStructure bool
	ImagesDir         string
	ArchiveSuffix     string
	CompressionLevel  int
	CleanPatterns     []string
}

// Sorter partitions extracted entries and writes the output bundle.
type Sorter struct {
	classifier *classify.Classifier
	filter     *classify.Filter
	opts       Options
	logger     *slog.Logger
}

// New builds a Sorter from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Sorter {
	return NewWithOptions(
		classify.New(cfg.Classify.ImageExtensions, cfg.Classify.ModelExtensions),
		classify.NewFilter(cfg.Classify.BlacklistPatterns, cfg.Classify.SizeRules),
		Options{
			PreserveStructure: cfg.Sort.PreserveStructure,
			ImagesDir:         cfg.Sort.ImagesDir,
			ArchiveSuffix:     cfg.Sort.ArchiveSuffix,
			CompressionLevel:  cfg.Sort.CompressionLevel,
			CleanPatterns:     cfg.Classify.CleanPatterns,
		},
		logger,
	)
}

// NewWithOptions builds a Sorter from explicit collaborators.
func NewWithOptions(classifier *classify.Classifier, filter *classify.Filter, opts Options, logger *slog.Logger) *Sorter {
	if opts.ImagesDir == "" {
		opts.ImagesDir = "Images"
	}
	if opts.ArchiveSuffix == "" {
		opts.ArchiveSuffix = "_STL.zip"
	}
	return &Sorter{
		classifier: classifier,
		filter:     filter,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "sorter"),
	}
}

type modelFile struct {
	source string
	member string
}

// Sort writes the bundle for in below outputDir. Sorts that resolve to the
// same project folder run one at a time. Context cancellation is returned
// unchanged; every other failure is a *Error.
func (s *Sorter) Sort(ctx context.Context, in Input, outputDir string) (*Bundle, error) {
	stem := textutil.CleanStem(in.ArtifactName, s.opts.CleanPatterns)
	projectDir := filepath.Join(outputDir, stem)
	bundle := &Bundle{
		ProjectDir:  projectDir,
		ImagesDir:   filepath.Join(projectDir, s.opts.ImagesDir),
		ArchivePath: filepath.Join(projectDir, stem+s.opts.ArchiveSuffix),
	}
	for _, rejected := range in.Rejected {
		bundle.Rejected = append(bundle.Rejected, rejected.Path)
	}

	prefix := ""
	if root := EffectiveRoot(in.SourceRoot); root != in.SourceRoot {
		if rel, err := filepath.Rel(in.SourceRoot, root); err == nil {
			prefix = filepath.ToSlash(rel)
		}
	}

	imageNames := newUniqueNames()
	memberNames := newUniqueNames()
	type imageFile struct{ source, name string }
	var images []imageFile
	var models []modelFile

	for _, entry := range in.Entries {
		kind := s.classifier.Classify(entry.Path)
		if kind == classify.KindIgnored {
			bundle.Ignored = append(bundle.Ignored, entry.Path)
			continue
		}
		if ok, reason := s.filter.Allow(entry.Path, entry.Size); !ok {
			bundle.Filtered = append(bundle.Filtered, entry.Path)
			s.logger.Debug("entry filtered",
				logging.String("entry", entry.Path),
				logging.String("reason", reason),
			)
			continue
		}
		source := filepath.Join(in.SourceRoot, filepath.FromSlash(entry.Path))
		switch kind {
		case classify.KindImage:
			base := textutil.SanitizeFileName(textutil.NormalizeName(path.Base(entry.Path)))
			images = append(images, imageFile{source: source, name: imageNames.claim(stem + "_" + base)})
		case classify.KindModel:
			member := s.memberName(relativeTo(prefix, entry.Path))
			models = append(models, modelFile{source: source, member: memberNames.claim(member)})
		}
	}

	unlock, err := lockProject(ctx, outputDir, stem)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, writeFailure(projectDir, err)
	}

	staged, err := os.MkdirTemp(projectDir, ".images-*")
	if err != nil {
		return nil, writeFailure(projectDir, err)
	}
	defer os.RemoveAll(staged)
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fileutil.CopyFile(image.source, filepath.Join(staged, image.name)); err != nil {
			return nil, writeFailure(image.source, err)
		}
		bundle.Images = append(bundle.Images, filepath.Join(bundle.ImagesDir, image.name))
	}

	if err := writeArchive(ctx, bundle.ArchivePath, models, s.opts.CompressionLevel); err != nil {
		return nil, err
	}
	if err := swapDir(staged, bundle.ImagesDir); err != nil {
		return nil, writeFailure(bundle.ImagesDir, err)
	}

	for _, model := range models {
		bundle.Models = append(bundle.Models, model.member)
	}
	if len(models) == 0 {
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf("no model files found in %s", in.ArtifactName))
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "archive contains no model files", "sort_no_models",
			logging.String("archive", bundle.ArchivePath),
			logging.String(logging.FieldErrorHint, "check classify.model_extensions and the blacklist"),
			logging.String(logging.FieldImpact, "empty model archive written; upload skipped"),
		)
	}

	logging.WithContext(ctx, s.logger).Info("bundle written",
		logging.String("project_dir", projectDir),
		logging.Int("images", len(bundle.Images)),
		logging.Int("models", len(bundle.Models)),
		logging.Int("ignored", len(bundle.Ignored)),
		logging.Int("filtered", len(bundle.Filtered)),
		logging.String(logging.FieldEventType, "sort_complete"),
	)
	return bundle, nil
}

func (s *Sorter) memberName(rel string) string {
	if !s.opts.PreserveStructure {
		return s.cleanComponent(path.Base(rel))
	}
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		parts[i] = s.cleanComponent(part)
	}
	return strings.Join(parts, "/")
}

func (s *Sorter) cleanComponent(name string) string {
	cleaned := textutil.SanitizeFileName(textutil.CleanName(name, s.opts.CleanPatterns))
	if cleaned == "" || (strings.HasPrefix(cleaned, ".") && path.Ext(cleaned) == cleaned) {
		return textutil.SanitizeFileName(textutil.NormalizeName(name))
	}
	return cleaned
}

// swapDir replaces target with staged. Any previous target is removed.
func swapDir(staged, target string) error {
	var previous string
	if _, err := os.Stat(target); err == nil {
		previous = target + ".old"
		_ = os.RemoveAll(previous)
		if err := os.Rename(target, previous); err != nil {
			return err
		}
	}
	if err := os.Rename(staged, target); err != nil {
		if previous != "" {
			_ = os.Rename(previous, target)
		}
		return err
	}
	if previous != "" {
		return os.RemoveAll(previous)
	}
	return nil
}
