package vision

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/walle-robot/go-walle/internal/log"
)

// Database stores known-face embeddings per person and answers
// nearest-match queries. Persistence is a single JSON file.
type Database struct {
	path      string
	threshold float64
	margin    float64

	mu      sync.RWMutex
	persons map[string][][]float32
}

// NewDatabase creates a Database and loads any existing file at path.
// A missing file is not an error; the database starts empty.
func NewDatabase(cfg Config) (*Database, error) {
	db := &Database{
		path:      cfg.DatabasePath,
		threshold: cfg.RecognitionThreshold,
		margin:    cfg.RecognitionMargin,
		persons:   make(map[string][][]float32),
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

// AddEmbedding appends one embedding for the named person.
func (db *Database) AddEmbedding(name string, emb []float32) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.persons[name] = append(db.persons[name], emb)
}

// RemovePerson drops a person and all their embeddings.
func (db *Database) RemovePerson(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.persons, name)
}

// Persons returns all known names, sorted.
func (db *Database) Persons() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.persons))
	for name := range db.persons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PersonCount returns the number of known people.
func (db *Database) PersonCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.persons)
}

// EmbeddingCount returns how many samples are stored for name.
func (db *Database) EmbeddingCount(name string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.persons[name])
}

// Search finds the best-matching person for the query embedding.
// The best similarity must reach the recognition threshold, and with more
// than one person in the database it must also beat the second-best
// candidate by the configured margin. Returns an empty name (and the best
// similarity seen) when no candidate qualifies.
func (db *Database) Search(query []float32) (string, float64) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.persons) == 0 {
		return "", 0
	}

	bestName := ""
	best := 0.0
	secondBest := 0.0

	for name, embeddings := range db.persons {
		personBest := 0.0
		for _, emb := range embeddings {
			if sim := Similarity(query, emb); sim > personBest {
				personBest = sim
			}
		}
		if personBest > best {
			secondBest = best
			best = personBest
			bestName = name
		} else if personBest > secondBest {
			secondBest = personBest
		}
	}

	marginOK := best-secondBest >= db.margin
	if len(db.persons) <= 1 {
		marginOK = true
	}

	if best >= db.threshold && marginOK {
		return bestName, best
	}
	return "", best
}

// Similarity computes cosine similarity between two embeddings, mapped
// from [-1,1] into [0,1].
func Similarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := (math.Sqrt(na) + 1e-8) * (math.Sqrt(nb) + 1e-8)
	return (dot/denom + 1) / 2
}

// Save writes the database to disk, creating the directory if needed.
func (db *Database) Save() error {
	db.mu.RLock()
	data, err := json.MarshalIndent(db.persons, "", "  ")
	db.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode face database: %w", err)
	}

	if dir := filepath.Dir(db.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}
	if err := os.WriteFile(db.path, data, 0o644); err != nil {
		return fmt.Errorf("write face database: %w", err)
	}
	log.Debug("face database saved", "path", db.path, "persons", len(db.persons))
	return nil
}

func (db *Database) load() error {
	data, err := os.ReadFile(db.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read face database: %w", err)
	}
	if err := json.Unmarshal(data, &db.persons); err != nil {
		return fmt.Errorf("decode face database: %w", err)
	}
	log.Info("face database loaded", "path", db.path, "persons", len(db.persons))
	return nil
}
