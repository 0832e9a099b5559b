package cmd

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg/ringer"
)

type stressPhase int

const (
	phasePutGet stressPhase = iota
	phaseRam
)

func (p stressPhase) String() string {
	if p == phaseRam {
		return "ram"
	}
	return "put/get"
}

type stressStats struct {
	Rounds int
	Puts   int
	Rams   int
	Gets   int
}

// stressModel mirrors a ring with a plain slice so every result can be checked
type stressModel struct {
	rg    *ringer.Ringer[int]
	items []int
	stats *stressStats
}

func (m *stressModel) put(item int) error {
	m.stats.Puts++
	full := len(m.items) == m.rg.Size()
	if ok := m.rg.Put(item); ok == full {
		return eris.Errorf("put returned %v with %d of %d slots used", ok, len(m.items), m.rg.Size())
	}

	if !full {
		m.items = append(m.items, item)
	}
	return nil
}

func (m *stressModel) ram(item int) error {
	m.stats.Rams++
	oldSize := m.rg.Size()
	full := len(m.items) == oldSize
	if resized := m.rg.Ram(item); resized != full {
		return eris.Errorf("ram reported resize %v with %d of %d slots used", resized, len(m.items), oldSize)
	}

	if full && m.rg.Size() != oldSize*2 {
		return eris.Errorf("ram grew a full ring from %d to %d slots", oldSize, m.rg.Size())
	}

	m.items = append(m.items, item)
	return nil
}

func (m *stressModel) get() error {
	m.stats.Gets++
	item, ok := m.rg.Get()
	if len(m.items) == 0 {
		if ok {
			return eris.Errorf("get returned %d from an empty ring", item)
		}
		return nil
	}

	if !ok || item != m.items[0] {
		return eris.Errorf("get returned %d (%v), expected %d", item, ok, m.items[0])
	}

	m.items = m.items[1:]
	if m.rg.Count() != len(m.items) {
		return eris.Errorf("count is %d, expected %d", m.rg.Count(), len(m.items))
	}
	return nil
}

// runStress creates rings of random sizes in [MinSize, MinSize+sizeRange) and feeds them random operations until
// every size was used 2*sizeRange times. onHit is called for every round that counts towards that goal.
func runStress(ctx context.Context, rng *rand.Rand, sizeRange int, phase stressPhase, stats *stressStats, onHit func()) error {
	if sizeRange < 1 {
		return eris.Errorf("invalid range %d", sizeRange)
	}

	sizeHit := make([]int, sizeRange)
	goal := sizeRange * 2
	remaining := sizeRange

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats.Rounds++
		size := rng.Intn(sizeRange) + ringer.MinSize
		rg, err := ringer.New[int](size)
		if err != nil {
			return err
		}

		idx := size - ringer.MinSize
		sizeHit[idx]++
		if sizeHit[idx] <= goal {
			onHit()
			if sizeHit[idx] == goal {
				remaining--
			}
		}

		m := &stressModel{rg: rg, stats: stats}
		passes := 1
		fill := m.put
		fillFactor := 1
		if phase == phaseRam {
			passes = 2
			fill = m.ram
			fillFactor = 4
		}

		for pass := 0; pass < passes; pass++ {
			count := (rng.Intn(sizeRange) + size) * fillFactor
			for j := 0; j < count; j++ {
				if err := fill(rng.Intn(2)); err != nil {
					return eris.Wrapf(err, "%s phase, ring size %d", phase, size)
				}
			}

			count = rng.Intn(sizeRange) + size
			for j := 0; j < count; j++ {
				if err := m.get(); err != nil {
					return eris.Wrapf(err, "%s phase, ring size %d", phase, size)
				}
			}
		}
	}

	return nil
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Runs a randomized soak test against the ring buffer",
	Long: `Creates rings of random sizes and runs random put/get and ram/get sequences
against them, checking every result against a plain slice. Stops once every size in
[MinSize, MinSize+range) was exercised 2*range times in each phase.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("range") {
			cfg.Stress.Range, _ = flags.GetInt("range")
		}
		if flags.Changed("seed") {
			cfg.Stress.Seed, _ = flags.GetInt64("seed")
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		sizeRange := cfg.Stress.Range
		rng := rand.New(rand.NewSource(cfg.Stress.Seed))
		stats := stressStats{}
		start := time.Now()

		for _, phase := range []stressPhase{phasePutGet, phaseRam} {
			total := int64(sizeRange * sizeRange * 2)
			var bar *progressbar.ProgressBar
			if os.Getenv("CI") == "true" {
				bar = progressbar.NewOptions64(total, progressbar.OptionSetVisibility(false))
			} else {
				bar = progressbar.Default(total, phase.String())
			}

			err := runStress(cmd.Context(), rng, sizeRange, phase, &stats, func() { bar.Add(1) })
			bar.Finish()
			if err != nil {
				return eris.Wrap(err, "stress test failed")
			}
		}

		log.Info().
			Int("rounds", stats.Rounds).
			Int("puts", stats.Puts).
			Int("rams", stats.Rams).
			Int("gets", stats.Gets).
			Int64("seed", cfg.Stress.Seed).
			Dur("duration", time.Since(start)).
			Msg("stress test passed")
		return nil
	},
}

func init() {
	stressCmd.Flags().Int("range", 7, "number of ring sizes to exercise (overrides stress.range)")
	stressCmd.Flags().Int64("seed", 1234, "random seed (overrides stress.seed)")

	rootCmd.AddCommand(stressCmd)
}
