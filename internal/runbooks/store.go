// Package runbooks loads remediation documents from disk and matches
// them against error text by keyword overlap.
//
// The corpus is small and loaded once per process; matching is plain
// lexical overlap rather than embedding similarity, which is accurate
// enough to surface the right runbook for known failure classes.
package runbooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("incidentd/runbooks")

// excerptLength bounds the excerpt captured for each match.
const excerptLength = 200

// DefaultTopK is the default number of matches returned by Search.
const DefaultTopK = 3

// ErrInvalidTopK is returned when Search is called with topK < 1.
var ErrInvalidTopK = errors.New("top_k must be a positive integer")

// Document is a runbook loaded into the in-memory corpus. Documents
// are immutable after load.
type Document struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// Match is a scored search result for one document.
type Match struct {
	Title     string  `json:"title"`
	Filename  string  `json:"filename"`
	Relevance float64 `json:"relevance_score"`
	Excerpt   string  `json:"summary"`
}

// Store holds the runbook corpus. The corpus is populated lazily on
// first access and cached for the process lifetime; the sync.Once
// guard makes concurrent first access safe.
type Store struct {
	dir    string
	logger *zap.Logger
	tracer trace.Tracer

	once sync.Once
	docs []Document
}

// NewStore creates a runbook store reading from dir. The directory is
// not touched until the first Load or Search call.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger,
		tracer: tracer,
	}
}

// Load returns the cached corpus, reading the directory on first call.
// A missing directory is a normal state: it yields an empty corpus
// with a warning, never an error. Individual unreadable files are
// skipped.
func (s *Store) Load(ctx context.Context) []Document {
	s.once.Do(func() {
		_, span := s.tracer.Start(ctx, "Store.Load")
		defer span.End()

		entries, err := os.ReadDir(s.dir)
		if err != nil {
			s.logger.Warn("runbook directory not available",
				zap.String("dir", s.dir),
				zap.Error(err),
			)
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(s.dir, entry.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn("failed to read runbook",
					zap.String("file", path),
					zap.Error(err),
				)
				continue
			}
			s.docs = append(s.docs, Document{
				Filename: entry.Name(),
				Title:    extractTitle(string(content)),
				Content:  string(content),
			})
		}

		s.logger.Info("runbooks loaded",
			zap.String("dir", s.dir),
			zap.Int("count", len(s.docs)),
		)
	})

	return s.docs
}

// extractTitle returns the first non-empty line with leading heading
// markup stripped.
func extractTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Search scores every loaded document against the query by keyword
// overlap and returns up to topK matches sorted by descending
// relevance. Score = (distinct query words found in the document) /
// (distinct query words), capped at 1.0. Zero-score documents are
// excluded. Ties keep load order.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	ctx, span := s.tracer.Start(ctx, "Store.Search")
	defer span.End()

	if topK < 1 {
		return nil, ErrInvalidTopK
	}

	docs := s.Load(ctx)
	if len(docs) == 0 {
		return nil, nil
	}

	words := distinctWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	var matches []Match
	for _, doc := range docs {
		content := strings.ToLower(doc.Content)
		hits := 0
		for word := range words {
			if strings.Contains(content, word) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(words))
		if score > 1.0 {
			score = 1.0
		}
		matches = append(matches, Match{
			Title:     doc.Title,
			Filename:  doc.Filename,
			Relevance: score,
			Excerpt:   excerpt(doc.Content),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Relevance > matches[j].Relevance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Describe looks up one document by filename and returns it in Match
// form with zero relevance. The second return is false when the
// corpus has no such document.
func (s *Store) Describe(ctx context.Context, filename string) (Match, bool) {
	for _, doc := range s.Load(ctx) {
		if doc.Filename == filename {
			return Match{
				Title:    doc.Title,
				Filename: doc.Filename,
				Excerpt:  excerpt(doc.Content),
			}, true
		}
	}
	return Match{}, false
}

// distinctWords tokenizes by whitespace and lowercases.
func distinctWords(query string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[w] = struct{}{}
	}
	return words
}

func excerpt(content string) string {
	if len(content) <= excerptLength {
		return content
	}
	cut := excerptLength
	// Back up to a rune boundary so the excerpt stays valid UTF-8.
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
