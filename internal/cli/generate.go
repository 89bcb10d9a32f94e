package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eunmann/tokenbench/pkg/benchutil"
	"github.com/eunmann/tokenbench/pkg/humanfmt"
	"github.com/eunmann/tokenbench/pkg/logging"
)

func generateCommand() *cli.Command {
	def := benchutil.DefaultConfig(100)
	return &cli.Command{
		Name:  "generate",
		Usage: "write synthetic volumes for benchmarking",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output directory", Required: true},
			&cli.IntFlag{Name: "volumes", Value: def.NumVolumes, Usage: "number of volume files"},
			&cli.IntFlag{Name: "pages", Value: def.PagesPerVolume, Usage: "pages per volume"},
			&cli.IntFlag{Name: "tokens", Value: def.TokensPerPage, Usage: "distinct tokens per page"},
			&cli.IntFlag{Name: "vocabulary", Value: def.Vocabulary, Usage: "distinct words across all volumes"},
			&cli.Float64Flag{Name: "eng-share", Value: def.LanguageDistribution["eng"], Usage: "fraction of volumes tagged eng, the rest split between ger and fre"},
			&cli.Int64Flag{Name: "seed", Value: def.Seed, Usage: "random seed"},
		},
		Action: generateAction,
	}
}

func generateAction(c *cli.Context) error {
	eng := c.Float64("eng-share")
	if eng < 0 || eng > 1 {
		return fmt.Errorf("--eng-share must be between 0 and 1, got %v", eng)
	}
	cfg := benchutil.GeneratorConfig{
		NumVolumes:     c.Int("volumes"),
		PagesPerVolume: c.Int("pages"),
		TokensPerPage:  c.Int("tokens"),
		Vocabulary:     c.Int("vocabulary"),
		LanguageDistribution: map[string]float64{
			"eng": eng,
			"ger": (1 - eng) / 2,
			"fre": (1 - eng) / 2,
		},
		Seed: c.Int64("seed"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	start := time.Now()
	paths, err := benchutil.NewGenerator(cfg).WriteDir(c.Context, c.String("out"))
	if err != nil {
		return fmt.Errorf("generate volumes: %w", err)
	}

	logging.PhaseComplete(*logging.L(), "generate", time.Since(start)).
		Str("out", c.String("out")).
		Int("volumes", len(paths)).
		Log("volumes generated")
	fmt.Fprintf(c.App.Writer, "wrote %d volumes to %s in %s\n", len(paths), c.String("out"), humanfmt.Duration(time.Since(start)))
	return nil
}
