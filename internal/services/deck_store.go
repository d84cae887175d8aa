package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deckgenius/internal/models"
	"deckgenius/internal/render"
)

const snapshotWidth = 960

// DeckStore manages the deck document in a JSON file
type DeckStore struct {
	mu        sync.RWMutex
	filePath  string
	dataPath  string
	doc       *models.Document
	lastSaved []byte
	callbacks []func(models.Document)
	logger    zerolog.Logger
}

// NewDeckStore creates a deck store and loads the file at filePath.
// Snapshot images are written next to it.
func NewDeckStore(filePath, defaultTitle string, logger zerolog.Logger) (*DeckStore, error) {
	store := &DeckStore{
		filePath: filePath,
		dataPath: filepath.Dir(filePath),
		doc: &models.Document{
			Title:       defaultTitle,
			Slides:      []models.Slide{},
			AspectRatio: models.Aspect16x9,
		},
		logger: logger.With().Str("component", "deck").Logger(),
	}

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load deck: %w", err)
	}
	return store, nil
}

// Load reads the deck file or keeps the empty deck if the file doesn't exist
func (s *DeckStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

// load must be called with lock held. It reports whether the document changed.
func (s *DeckStore) load() (bool, error) {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.logger.Info().Str("path", s.filePath).Msg("deck file not found, starting with an empty deck")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read deck file: %w", err)
	}
	if bytes.Equal(data, s.lastSaved) {
		return false, nil
	}

	imp, err := models.ParseImport(data)
	if err != nil || imp.Kind != models.ImportDocument {
		// a half-written or hand-broken file must not wipe the deck in memory
		s.logger.Warn().Err(err).Str("path", s.filePath).Msg("failed to parse deck file, keeping current deck")
		return false, nil
	}

	doc := imp.Document
	if doc.AspectRatio == "" {
		doc.AspectRatio = models.Aspect16x9
	}
	s.doc = doc
	s.lastSaved = data
	s.logger.Info().Int("slides", len(doc.Slides)).Str("path", s.filePath).Msg("loaded deck")
	return true, nil
}

// save atomically writes the deck file (temp file → rename)
// Must be called with lock held
func (s *DeckStore) save() error {
	if s.doc.Slides == nil {
		s.doc.Slides = []models.Slide{}
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deck: %w", err)
	}

	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	s.lastSaved = data
	return nil
}

// mutate applies fn under the lock, saves, and notifies listeners
func (s *DeckStore) mutate(fn func(doc *models.Document) error) error {
	s.mu.Lock()
	if err := fn(s.doc); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.save(); err != nil {
		s.mu.Unlock()
		return err
	}
	doc, callbacks := s.snapshot()
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(doc)
	}
	return nil
}

// snapshot must be called with lock held
func (s *DeckStore) snapshot() (models.Document, []func(models.Document)) {
	doc := models.Document{
		Title:       s.doc.Title,
		Slides:      models.CloneSlides(s.doc.Slides),
		AspectRatio: s.doc.AspectRatio,
	}
	callbacks := make([]func(models.Document), len(s.callbacks))
	copy(callbacks, s.callbacks)
	return doc, callbacks
}

// Document returns a deep copy of the deck
func (s *DeckStore) Document() models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, _ := s.snapshot()
	return doc
}

// OnChange registers fn for every change, including external edits of the file
func (s *DeckStore) OnChange(fn func(models.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// SetTitle renames the deck
func (s *DeckStore) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	return s.mutate(func(doc *models.Document) error {
		doc.Title = title
		return nil
	})
}

// AddSlide appends slide, assigning an id when it has none
func (s *DeckStore) AddSlide(slide models.Slide) (models.Slide, error) {
	slide = slide.Clone()
	if slide.ID == "" {
		slide.ID = "slide-" + uuid.NewString()
	}
	err := s.mutate(func(doc *models.Document) error {
		for _, existing := range doc.Slides {
			if existing.ID == slide.ID {
				return fmt.Errorf("slide %q already exists", slide.ID)
			}
		}
		doc.Slides = append(doc.Slides, slide)
		return nil
	})
	return slide, err
}

// Import applies an export payload: a document replaces the deck, a single
// slide is appended under a fresh id.
func (s *DeckStore) Import(data []byte) (models.ImportKind, error) {
	imp, err := models.ParseImport(data)
	if err != nil {
		return 0, err
	}

	switch imp.Kind {
	case models.ImportDocument:
		doc := imp.Document
		err = s.mutate(func(cur *models.Document) error {
			cur.Title = doc.Title
			cur.Slides = models.CloneSlides(doc.Slides)
			if doc.AspectRatio != "" {
				cur.AspectRatio = doc.AspectRatio
			}
			return nil
		})
		if err == nil {
			s.logger.Info().Str("title", doc.Title).Int("slides", len(doc.Slides)).Msg("imported deck")
		}
	case models.ImportSlide:
		slide := imp.Slide.Clone()
		slide.ID = "imported-slide-" + uuid.NewString()
		_, err = s.AddSlide(slide)
	}
	return imp.Kind, err
}

// ExportDocument returns the deck in the import format
func (s *DeckStore) ExportDocument() ([]byte, error) {
	doc := s.Document()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deck: %w", err)
	}
	return data, nil
}

// Slide returns the slide with id
func (s *DeckStore) Slide(id string) (models.Slide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, slide := range s.doc.Slides {
		if slide.ID == id {
			return slide.Clone(), nil
		}
	}
	return models.Slide{}, fmt.Errorf("%w: %s", models.ErrSlideNotFound, id)
}

// ExportSlide returns one slide in the single-slide import format
func (s *DeckStore) ExportSlide(id string) ([]byte, error) {
	slide, err := s.Slide(id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(slide, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slide: %w", err)
	}
	return data, nil
}

// Snapshot renders a slide to PNG and keeps a copy under snapshots/
func (s *DeckStore) Snapshot(id string) ([]byte, error) {
	slide, err := s.Slide(id)
	if err != nil {
		return nil, err
	}
	aspect := s.Document().AspectRatio

	data, err := render.SlidePNG(slide, aspect, snapshotWidth)
	if err != nil {
		return nil, err
	}

	dirPath := filepath.Join(s.dataPath, "snapshots")
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirPath, filepath.Base(id)+".png"), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image file: %w", err)
	}
	return data, nil
}

// Watch reloads the deck when the file is changed by someone else, until ctx
// is done.
func (s *DeckStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create deck watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}
	// watch the directory: editors and our own save replace the file by rename
	if err := watcher.Add(s.dataPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dataPath, err)
	}

	target := filepath.Clean(s.filePath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("deck watcher error")
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			s.reload()
		}
	}
}

func (s *DeckStore) reload() {
	s.mu.Lock()
	changed, err := s.load()
	if err != nil || !changed {
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to reload deck")
		}
		return
	}
	doc, callbacks := s.snapshot()
	s.mu.Unlock()

	s.logger.Info().Msg("deck reloaded after external change")
	for _, cb := range callbacks {
		cb(doc)
	}
}
