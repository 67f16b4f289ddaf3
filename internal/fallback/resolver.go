// Package fallback decides which provider serves a given call and in what
// order: an ordered fallback chain on the speech axis, and a mode-driven
// (optionally coin-flipped) choice on the visual axis.
package fallback

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"time"

	"storyreel/internal/pkg/errors"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/provider/speech"
	"storyreel/internal/provider/visual"
)

// VisualMode selects the visual-asset axis behavior.
const (
	VisualModeRunway = "runway"
	VisualModeLuma   = "luma"
	VisualModeBoth   = "both"
	VisualModeStock  = "stock"
)

type Deps struct {
	// SpeechChain is the ordered speech fallback chain, primary first.
	SpeechChain []speech.Synthesizer

	VisualMode string
	Runway     visual.Finder
	Luma       visual.Finder
	Stock      visual.Finder

	// CoinFlip decides between the two generative providers in "both"
	// mode. Injectable so tests can pin the choice; nil gets a
	// time-seeded default.
	CoinFlip func() bool

	Log *logger.Logger
}

type Resolver struct {
	chain      []speech.Synthesizer
	visualMode string
	runway     visual.Finder
	luma       visual.Finder
	stock      visual.Finder
	coinFlip   func() bool
	log        *logger.Logger
}

func NewResolver(d Deps) *Resolver {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	flip := d.CoinFlip
	if flip == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		flip = func() bool { return rng.Intn(2) == 0 }
	}
	return &Resolver{
		chain:      d.SpeechChain,
		visualMode: d.VisualMode,
		runway:     d.Runway,
		luma:       d.Luma,
		stock:      d.Stock,
		coinFlip:   flip,
		log:        log.WithComponent("fallback"),
	}
}

// Synthesize walks the speech chain until one hop succeeds. Every hop
// failure is recorded; the call only fails once the whole chain does.
func (r *Resolver) Synthesize(ctx context.Context, text, voiceID string) (speech.Audio, string, error) {
	var hopErrs []error

	for _, hop := range r.chain {
		if !hop.Configured() {
			r.log.Debug("skipping unconfigured speech provider", "provider", hop.Name())
			continue
		}

		audio, err := hop.Generate(ctx, text, voiceID)
		if err == nil {
			return audio, hop.Name(), nil
		}

		r.log.Warn("speech provider failed, falling through",
			"provider", hop.Name(),
			"error", err.Error(),
		)
		hopErrs = append(hopErrs, fmt.Errorf("%s: %w", hop.Name(), err))
	}

	if len(hopErrs) == 0 {
		return speech.Audio{}, "", errors.New(errors.CodeProvider, "no speech provider configured")
	}
	return speech.Audio{}, "", errors.Provider("speech", stderrors.Join(hopErrs...))
}

// PickVisual resolves the visual provider for one scene. In "both" mode the
// coin flip runs once per call, so consecutive scenes may land on different
// generative providers.
func (r *Resolver) PickVisual() (visual.Finder, error) {
	switch r.visualMode {
	case VisualModeRunway:
		if configured(r.runway) {
			return r.runway, nil
		}
	case VisualModeLuma:
		if configured(r.luma) {
			return r.luma, nil
		}
	case VisualModeBoth:
		first, second := r.runway, r.luma
		if r.coinFlip() {
			first, second = r.luma, r.runway
		}
		if configured(first) {
			return first, nil
		}
		if configured(second) {
			return second, nil
		}
	case "", VisualModeStock:
		// handled below
	default:
		return nil, fmt.Errorf("fallback: unknown visual mode: %s", r.visualMode)
	}

	if configured(r.stock) {
		return r.stock, nil
	}
	return nil, errors.New(errors.CodeProvider, "no visual provider configured")
}

func configured(f visual.Finder) bool {
	return f != nil && f.Configured()
}
