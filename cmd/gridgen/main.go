// gridgen expands grid band definitions into the explicit per-level
// pair configuration the bot consumes. Bands describe a ladder (first
// entry, step, count); the tool emits every entry/exit level pair,
// validated with the same rules the bot applies at startup.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"arb_bot/internal/models"
	"arb_bot/internal/modules/config"
)

const defaultOutput = "configs/pairs_gen.yaml"

type bandSpec struct {
	Direction  string `mapstructure:"direction"`
	Start      string `mapstructure:"start"`
	Step       string `mapstructure:"step"`
	Count      int    `mapstructure:"count"`
	ExitOffset string `mapstructure:"exit_offset"`
	Fraction   string `mapstructure:"fraction"`
}

type pairSpec struct {
	Leg1  string     `mapstructure:"leg1"`
	Leg2  string     `mapstructure:"leg2"`
	Lot1  string     `mapstructure:"lot1"`
	Lot2  string     `mapstructure:"lot2"`
	Bands []bandSpec `mapstructure:"bands"`
}

func expandBand(b bandSpec) ([]config.LevelConfig, error) {
	start, err := decimal.NewFromString(b.Start)
	if err != nil {
		return nil, errors.Wrap(err, "parse start")
	}
	step, err := decimal.NewFromString(b.Step)
	if err != nil {
		return nil, errors.Wrap(err, "parse step")
	}
	offset, err := decimal.NewFromString(b.ExitOffset)
	if err != nil {
		return nil, errors.Wrap(err, "parse exit_offset")
	}
	frac, err := decimal.NewFromString(b.Fraction)
	if err != nil {
		return nil, errors.Wrap(err, "parse fraction")
	}
	if b.Count <= 0 {
		return nil, errors.Errorf("band count %d, must be positive", b.Count)
	}

	dir := models.SpreadDirection(b.Direction)
	out := make([]config.LevelConfig, 0, b.Count)
	for i := 0; i < b.Count; i++ {
		entry := start.Add(step.Mul(decimal.NewFromInt(int64(i))))

		// exits sit between the entry and zero
		var exit decimal.Decimal
		switch dir {
		case models.LongSpread:
			exit = entry.Add(offset.Abs())
		case models.ShortSpread:
			exit = entry.Sub(offset.Abs())
		default:
			return nil, errors.Errorf("unknown direction %q", b.Direction)
		}

		// reject broken geometry here, not at bot startup
		if _, err := models.NewGridLevelPair(dir, entry, exit, frac); err != nil {
			return nil, errors.Wrapf(err, "level %d of band", i)
		}

		out = append(out, config.LevelConfig{
			Direction: b.Direction,
			Entry:     entry.String(),
			Exit:      exit.String(),
			Fraction:  frac.String(),
		})
	}
	return out, nil
}

func expand(specs []pairSpec) ([]config.PairConfig, error) {
	out := make([]config.PairConfig, 0, len(specs))
	for _, ps := range specs {
		pc := config.PairConfig{Leg1: ps.Leg1, Leg2: ps.Leg2, Lot1: ps.Lot1, Lot2: ps.Lot2}
		for _, b := range ps.Bands {
			levels, err := expandBand(b)
			if err != nil {
				return nil, errors.Wrapf(err, "pair %s/%s", ps.Leg1, ps.Leg2)
			}
			pc.Levels = append(pc.Levels, levels...)
		}
		if len(pc.Levels) == 0 {
			return nil, errors.Errorf("pair %s/%s produced no levels", ps.Leg1, ps.Leg2)
		}
		out = append(out, pc)
	}
	return out, nil
}

func writeOutput(path string, pairs []config.PairConfig) error {
	doc := struct {
		Pairs []config.PairConfig `yaml:"pairs"`
	}{Pairs: pairs}

	bs, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal pairs to yaml")
	}
	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}

func main() {
	viper.SetConfigName(".grid.base")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var specs []pairSpec
	if err := viper.UnmarshalKey("pairs", &specs); err != nil {
		panic(fmt.Errorf("unmarshal pairs: %w", err))
	}
	if len(specs) == 0 {
		panic("has no pairs in config")
	}

	output := viper.GetString("output")
	if output == "" {
		output = defaultOutput
	}

	pairs, err := expand(specs)
	if err != nil {
		panic(fmt.Errorf("expand bands: %w", err))
	}
	if err := writeOutput(output, pairs); err != nil {
		panic(fmt.Errorf("write %s: %w", output, err))
	}

	levels := 0
	for _, p := range pairs {
		levels += len(p.Levels)
	}
	fmt.Printf("%d pairs, %d levels written to %s\n", len(pairs), levels, output)
	fmt.Println("done")
}
