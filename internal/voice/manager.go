package voice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/scriptcast/internal/health"
	"github.com/MrWong99/scriptcast/internal/observe"
	"github.com/MrWong99/scriptcast/pkg/audio"
	"github.com/MrWong99/scriptcast/pkg/audio/mixer"
	"github.com/MrWong99/scriptcast/pkg/types"
)

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithAssembler replaces the default assembler.
func WithAssembler(a *mixer.Assembler) ManagerOption {
	return func(m *Manager) {
		m.assembler = a
	}
}

// WithProgress reports per-turn progress of every run to p.
func WithProgress(p *health.Progress) ManagerOption {
	return func(m *Manager) {
		m.progress = p
	}
}

// WithOutputFormat sets the format of the exported track. Turns are always
// synthesized and assembled at [audio.Canonical]; a different output format
// is produced by converting the finished track.
func WithOutputFormat(f audio.Format) ManagerOption {
	return func(m *Manager) {
		m.format = f
	}
}

// WithManagerMetrics sets the metric instruments used for track-level metrics.
func WithManagerMetrics(mt *observe.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// Manager turns a whole script into one exported track. Turns are
// synthesized strictly in script order.
type Manager struct {
	synth     *Synthesizer
	assembler *mixer.Assembler
	progress  *health.Progress
	metrics   *observe.Metrics
	format    audio.Format
}

// NewManager creates a Manager that renders turns with synth.
func NewManager(synth *Synthesizer, opts ...ManagerOption) *Manager {
	m := &Manager{
		synth:  synth,
		format: audio.Canonical,
	}
	for _, o := range opts {
		o(m)
	}
	if m.assembler == nil {
		m.assembler = mixer.New()
	}
	if m.metrics == nil {
		m.metrics = synth.metrics
	}
	return m
}

// Preload registers profiles ahead of a run. Because registration is
// first-wins, preloaded profiles take precedence over the characteristics
// carried by the script's turns.
func (m *Manager) Preload(profiles ...types.VoiceProfile) {
	for _, p := range profiles {
		m.synth.registry.Register(p)
	}
}

// Profiles returns every registered profile sorted by speaker name.
func (m *Manager) Profiles() []types.VoiceProfile {
	return m.synth.registry.Profiles()
}

// SynthesizeScript renders turns in order, assembles them into one track and
// writes it to outPath as WAV. It returns the absolute path of the written
// file. On error no file is left at outPath.
//
// Every turn is validated before any backend is invoked. ctx is checked
// between turns.
func (m *Manager) SynthesizeScript(ctx context.Context, turns []types.DialogueTurn, outPath string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "voice.SynthesizeScript",
		trace.WithAttributes(attribute.Int("turns", len(turns))),
	)
	defer span.End()

	if m.progress != nil {
		m.progress.Start(observe.RunID(ctx), len(turns))
	}
	path, track, err := m.run(ctx, turns, outPath)
	if m.progress != nil {
		m.progress.Finish(err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	m.metrics.RecordTrack(ctx, track)
	observe.Logger(ctx).Info("voice: track written",
		"path", path,
		"turns", len(turns),
		"duration", track,
	)
	return path, nil
}

func (m *Manager) run(ctx context.Context, turns []types.DialogueTurn, outPath string) (string, time.Duration, error) {
	for i, t := range turns {
		if err := t.Validate(); err != nil {
			return "", 0, fmt.Errorf("voice: turn %d: %w", i, err)
		}
	}

	parts := make([]mixer.Part, 0, len(turns))
	for i, t := range turns {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("voice: cancelled before turn %d: %w", i, err)
		}
		seg, err := m.synth.SynthesizeTurn(ctx, t)
		if err != nil {
			return "", 0, fmt.Errorf("voice: turn %d: %w", i, err)
		}
		parts = append(parts, mixer.Part{Speaker: t.Speaker, Segment: seg})
		if m.progress != nil {
			m.progress.TurnDone()
		}
	}

	track, err := m.assembler.Assemble(parts)
	if err != nil {
		return "", 0, fmt.Errorf("voice: %w", err)
	}
	if track.Format() != m.format {
		track = audio.Convert(track, m.format)
	}

	path, err := m.assembler.Export(track, outPath)
	if err != nil {
		return "", 0, fmt.Errorf("voice: %w", err)
	}
	return path, track.Duration(), nil
}
