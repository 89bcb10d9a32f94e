// Package benchutil provides synthetic volume generation for benchmarks and
// testing.
package benchutil

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eunmann/tokenbench/pkg/fileutil"
	"github.com/eunmann/tokenbench/pkg/volume"
)

// tags is the part-of-speech tag set drawn from for generated tokens.
var tags = []string{"NN", "NNS", "NNP", "VB", "VBD", "VBZ", "JJ", "RB", "IN", "DT", "PRP", "CC"}

// GeneratorConfig configures synthetic volume generation.
type GeneratorConfig struct {
	// NumVolumes is the number of volumes to generate.
	NumVolumes int
	// PagesPerVolume is the number of pages in each volume.
	PagesPerVolume int
	// TokensPerPage is the number of distinct tokens on each page.
	TokensPerPage int
	// Vocabulary is the number of distinct lower-cased words. Smaller values
	// make pages share more tokens, which exercises aggregation.
	Vocabulary int
	// LanguageDistribution maps language codes to their probability
	// (0.0-1.0). If nil, every volume is "eng".
	LanguageDistribution map[string]float64
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig(numVolumes int) GeneratorConfig {
	return GeneratorConfig{
		NumVolumes:     numVolumes,
		PagesPerVolume: 50,
		TokensPerPage:  200,
		Vocabulary:     5000,
		LanguageDistribution: map[string]float64{
			"eng": 0.80,
			"ger": 0.10,
			"fre": 0.10,
		},
		Seed: BenchmarkSeed,
	}
}

// Validate checks configuration values.
func (c *GeneratorConfig) Validate() error {
	if c.NumVolumes < 0 {
		return fmt.Errorf("NumVolumes must be non-negative, got %d", c.NumVolumes)
	}
	if c.PagesPerVolume < 0 {
		return fmt.Errorf("PagesPerVolume must be non-negative, got %d", c.PagesPerVolume)
	}
	if c.TokensPerPage < 0 {
		return fmt.Errorf("TokensPerPage must be non-negative, got %d", c.TokensPerPage)
	}
	if c.Vocabulary <= 0 {
		return fmt.Errorf("Vocabulary must be positive, got %d", c.Vocabulary)
	}
	for lang, p := range c.LanguageDistribution {
		if p < 0 {
			return fmt.Errorf("negative probability %v for %q", p, lang)
		}
	}
	return nil
}

// Generator generates synthetic volumes.
type Generator struct {
	cfg   GeneratorConfig
	rng   *rand.Rand
	langs []string
	next  int
}

// NewGenerator creates a new volume generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	langs := make([]string, 0, len(cfg.LanguageDistribution))
	for lang := range cfg.LanguageDistribution {
		langs = append(langs, lang)
	}
	// sorted so a seed always yields the same volumes
	sort.Strings(langs)
	return &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		langs: langs,
	}
}

// Generate returns the configured number of volumes.
func (g *Generator) Generate() []*volume.Document {
	docs := make([]*volume.Document, g.cfg.NumVolumes)
	for i := range docs {
		docs[i] = g.Next()
	}
	return docs
}

// Next returns one more volume.
func (g *Generator) Next() *volume.Document {
	id := fmt.Sprintf("bench.%08d", g.next)
	g.next++

	doc := &volume.Document{
		ID:       id,
		Metadata: volume.Metadata{Language: g.generateLanguage()},
		Features: &volume.Features{Pages: make([]volume.Page, g.cfg.PagesPerVolume)},
	}
	for p := range doc.Features.Pages {
		doc.Features.Pages[p] = volume.Page{Body: &volume.PageBody{TokenPosCount: g.generatePage()}}
	}
	return doc
}

// WriteDir writes NumVolumes volume files into dir, creating it if needed,
// and returns their paths.
func (g *Generator) WriteDir(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if _, err := fileutil.CleanupTmpFiles(dir); err != nil {
		return nil, err
	}

	paths := make([]string, 0, g.cfg.NumVolumes)
	for i := 0; i < g.cfg.NumVolumes; i++ {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		doc := g.Next()
		path := filepath.Join(dir, doc.ID+".json.bz2")
		if err := volume.WriteFile(path, doc); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *Generator) generatePage() map[string]map[string]int64 {
	page := make(map[string]map[string]int64, g.cfg.TokensPerPage)
	for len(page) < g.cfg.TokensPerPage && len(page) < 2*g.cfg.Vocabulary {
		tok := g.generateToken()
		if _, ok := page[tok]; ok {
			continue
		}
		counts := map[string]int64{g.generateTag(): g.generateCount()}
		// Some words carry a second tag, like "run" as noun and verb.
		if g.rng.Intn(8) == 0 {
			counts[g.generateTag()] += g.generateCount()
		}
		page[tok] = counts
	}
	return page
}

func (g *Generator) generateToken() string {
	word := alphaWord(g.rng.Intn(g.cfg.Vocabulary))
	// Sentence-initial capitals are counted under the lower-cased token.
	if g.rng.Intn(5) == 0 {
		return strings.ToUpper(word[:1]) + word[1:]
	}
	return word
}

func (g *Generator) generateTag() string {
	return tags[g.rng.Intn(len(tags))]
}

func (g *Generator) generateCount() int64 {
	// Zipf-ish: most tokens appear once or twice on a page
	switch g.rng.Intn(10) {
	case 0, 1, 2, 3, 4:
		return 1
	case 5, 6, 7:
		return int64(2 + g.rng.Intn(3))
	case 8:
		return int64(5 + g.rng.Intn(20))
	default:
		return int64(25 + g.rng.Intn(200))
	}
}

func (g *Generator) generateLanguage() string {
	if len(g.langs) == 0 {
		return "eng"
	}

	r := g.rng.Float64()
	cumulative := 0.0
	for _, lang := range g.langs {
		cumulative += g.cfg.LanguageDistribution[lang]
		if r < cumulative {
			return lang
		}
	}
	return "eng"
}

// alphaWord maps n to a lower-case word: a, b, ..., z, ba, bb, ...
func alphaWord(n int) string {
	var b []byte
	for {
		b = append(b, byte('a'+n%26))
		n /= 26
		if n == 0 {
			break
		}
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
