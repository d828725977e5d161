package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/santibernabebb-gif/presupuestos/internal/extraction"
)

// IDGenerator generates unique IDs for budget documents
type IDGenerator interface {
	Generate() string
}

// NumberGenerator generates the human-facing budget number printed on the
// template
type NumberGenerator interface {
	Generate(now time.Time) string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// ExtractorFactory builds an extractor for an alternate API key, used by the
// credential-switch flow without restarting the service
type ExtractorFactory func(ctx context.Context, apiKey string) (extraction.Extractor, error)

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultNumberGenerator keeps the SANTI-YYYY-NNN numbering of the paper
// forms
type defaultNumberGenerator struct{}

func (g *defaultNumberGenerator) Generate(now time.Time) string {
	return fmt.Sprintf("SANTI-%d-%03d", now.Year(), rand.Intn(1000))
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ProcessOptions tune a single extraction request
type ProcessOptions struct {
	// APIKey, when set, is used for this request only instead of the
	// configured key. Surfaced by the UI after entitlement/quota errors.
	APIKey string
}

// Service handles budget document operations
type Service struct {
	db           DB
	extractor    extraction.Extractor
	newExtractor ExtractorFactory
	idGenerator  IDGenerator
	numberGen    NumberGenerator
	timeSource   TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor extraction.Extractor, factory ExtractorFactory) *Service {
	return &Service{
		db:           db,
		extractor:    extractor,
		newExtractor: factory,
		idGenerator:  &defaultIDGenerator{},
		numberGen:    &defaultNumberGenerator{},
		timeSource:   &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, factory ExtractorFactory, idGen IDGenerator, numberGen NumberGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:           db,
		extractor:    extractor,
		newExtractor: factory,
		idGenerator:  idGen,
		numberGen:    numberGen,
		timeSource:   timeSrc,
	}
}

// Process runs the full pipeline for one captured sheet: prepare the page
// images, extract with the vision model, normalize, and snapshot to history.
// A failed extraction produces nothing; there is no partial document.
func (s *Service) Process(ctx context.Context, uploads []extraction.Upload, opts ProcessOptions) (*BudgetDocument, error) {
	if len(uploads) == 0 {
		return nil, extraction.ErrNoPages
	}

	pages, err := extraction.PreparePages(uploads)
	if err != nil {
		return nil, fmt.Errorf("preparing pages: %w", err)
	}

	extractor := s.extractor
	if opts.APIKey != "" {
		if s.newExtractor == nil {
			return nil, fmt.Errorf("alternate credentials are not supported")
		}
		alternate, err := s.newExtractor(ctx, opts.APIKey)
		if err != nil {
			return nil, fmt.Errorf("creating extractor for alternate key: %w", err)
		}
		defer alternate.Close()
		extractor = alternate
	}

	sheet, err := extractor.Extract(ctx, pages)
	if err != nil {
		slog.Error("Failed to extract budget sheet",
			"pages", len(pages),
			"kind", extraction.KindOf(err),
			"error", err,
		)
		return nil, fmt.Errorf("extracting budget sheet: %w", err)
	}

	now := s.timeSource.Now()
	document := Normalize(sheet, s.idGenerator.Generate(), s.numberGen.Generate(now), now)

	entry := &HistoryEntry{
		ID:         document.ID,
		CapturedAt: now,
		Client:     document.Client,
		Total:      document.Total,
		Document:   *document,
	}
	if err := s.db.AppendEntry(entry); err != nil {
		return nil, fmt.Errorf("saving to history: %w", err)
	}

	return document, nil
}

// GetDocument retrieves the frozen document for a history entry
func (s *Service) GetDocument(id string) (*BudgetDocument, error) {
	entry, err := s.db.GetEntry(id)
	if err != nil {
		return nil, fmt.Errorf("getting history entry: %w", err)
	}
	return &entry.Document, nil
}

// ListHistory returns all history entries, most recent first
func (s *Service) ListHistory() ([]*HistoryEntry, error) {
	entries, err := s.db.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes an entry from the history
func (s *Service) DeleteEntry(id string) error {
	if _, err := s.db.GetEntry(id); err != nil {
		return fmt.Errorf("getting history entry for deletion: %w", err)
	}
	if err := s.db.RemoveEntry(id); err != nil {
		return fmt.Errorf("removing history entry: %w", err)
	}
	return nil
}
