// Package importer creates notes in bulk from markdown files in a local
// directory or a git repository.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/memomind/internal/domain"
	"github.com/conorfennell/memomind/internal/gitsource"
	"github.com/conorfennell/memomind/internal/knol"
	"github.com/conorfennell/memomind/internal/parser"
)

// Store is the part of the note store an import writes to.
type Store interface {
	HasSourceHash(ctx context.Context, ownerID, hash string) (bool, error)
	CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
}

// SyncFunc brings a local checkout of repoURL up to date.
type SyncFunc func(ctx context.Context, repoURL, localPath string) error

// Importer reconciles markdown sources into an owner's notes.
type Importer struct {
	store    Store
	reposDir string
	sync     SyncFunc
}

func New(store Store, reposDir string) *Importer {
	return &Importer{store: store, reposDir: reposDir, sync: gitsource.Sync}
}

// Report summarises one import run.
type Report struct {
	Files   int
	Parsed  int
	Created int
	Skipped int
	Errors  []error
}

// Import parses every .md file under source and creates the notes the owner
// does not have yet. Notes are matched by content hash, so running the same
// import twice creates nothing the second time. Per-file and per-note
// failures are collected in the report; only failures to reach the source
// are returned as errors.
func (im *Importer) Import(ctx context.Context, ownerID, source string) (Report, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Report{}, &domain.ValidationError{Fields: []string{"owner"}}
	}

	dir := source
	if gitsource.IsURL(source) {
		localPath, err := gitsource.LocalPath(im.reposDir, source)
		if err != nil {
			return Report{}, err
		}
		if err := im.sync(ctx, source, localPath); err != nil {
			return Report{}, err
		}
		dir = localPath
	}

	slog.Info("Importing notes", "owner_id", ownerID, "path", dir)
	var report Report
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		report.Files++
		drafts, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, draft := range drafts {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Parsed++
			im.importNote(ctx, ownerID, draft, &report)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	slog.Info("Import complete",
		"path", dir,
		"files", report.Files,
		"parsed_notes", report.Parsed,
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (im *Importer) importNote(ctx context.Context, ownerID string, draft domain.NoteDraft, report *Report) {
	hash := knol.Hash(draft)
	exists, err := im.store.HasSourceHash(ctx, ownerID, hash)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", hash, err))
		return
	}
	if exists {
		report.Skipped++
		return
	}

	slog.Debug("New note found, inserting", "hash", hash, "title", draft.Title)
	_, err = im.store.CreateNote(ctx, domain.Note{
		OwnerID:       ownerID,
		Title:         draft.Title,
		Understanding: draft.Understanding,
		SourceHash:    hash,
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("db insert for %s: %w", hash, err))
		return
	}
	report.Created++
}
