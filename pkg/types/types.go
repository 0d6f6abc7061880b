// Package types defines the shared script and voice types used across all
// scriptcast packages.
//
// These types form the lingua franca between the script collaborator, the
// backend adapters, the turn synthesizer and the assembler. They are
// intentionally minimal: each package defines its own domain types, and only
// cross-cutting data structures live here.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTurn is returned when a [DialogueTurn] is missing required fields
// or uses voice characteristics outside the recognised vocabulary. It is a
// caller contract violation and is reported before any backend is invoked.
var ErrMalformedTurn = errors.New("malformed dialogue turn")

// Tone is the coarse speaking register of a persona.
type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneAuthoritative  Tone = "authoritative"
	ToneConversational Tone = "conversational"
	ToneAnalytical     Tone = "analytical"
	TonePassionate     Tone = "passionate"
	ToneNeutral        Tone = "neutral"
)

// IsValid reports whether t is a recognised tone.
func (t Tone) IsValid() bool {
	switch t {
	case ToneProfessional, ToneAuthoritative, ToneConversational,
		ToneAnalytical, TonePassionate, ToneNeutral:
		return true
	}
	return false
}

// Pace is the speaking rate of a persona.
type Pace string

const (
	PaceSlow     Pace = "slow"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// IsValid reports whether p is a recognised pace.
func (p Pace) IsValid() bool {
	return p == PaceSlow || p == PaceModerate || p == PaceFast
}

// DefaultEmphasis is the emphasis label assigned when a turn does not carry one.
const DefaultEmphasis = "natural"

// VoiceCharacteristics is the small set of named voice parameters attached to
// every dialogue turn by the script collaborator.
type VoiceCharacteristics struct {
	// Tone selects the voice variant and the synthetic base frequency.
	Tone Tone `yaml:"tone" json:"tone"`

	// Pace selects the speech rate.
	Pace Pace `yaml:"pace" json:"pace"`

	// Emphasis is a free-form label (e.g., "clear", "natural"). It is carried
	// through to the voice profile; only instruction-following cloud models
	// interpret it.
	Emphasis string `yaml:"emphasis" json:"emphasis"`
}

// Normalized returns a copy of v with empty fields replaced by their defaults:
// neutral tone, moderate pace and natural emphasis.
func (v VoiceCharacteristics) Normalized() VoiceCharacteristics {
	if v.Tone == "" {
		v.Tone = ToneNeutral
	}
	if v.Pace == "" {
		v.Pace = PaceModerate
	}
	if strings.TrimSpace(v.Emphasis) == "" {
		v.Emphasis = DefaultEmphasis
	}
	return v
}

// Validate returns an error wrapping [ErrMalformedTurn] when the tone or pace
// is set to a value outside the recognised vocabulary. Empty values are valid
// and resolve to defaults via [VoiceCharacteristics.Normalized].
func (v VoiceCharacteristics) Validate() error {
	if v.Tone != "" && !v.Tone.IsValid() {
		return fmt.Errorf("%w: tone %q is invalid; valid values: professional, authoritative, conversational, analytical, passionate, neutral", ErrMalformedTurn, v.Tone)
	}
	if v.Pace != "" && !v.Pace.IsValid() {
		return fmt.Errorf("%w: pace %q is invalid; valid values: slow, moderate, fast", ErrMalformedTurn, v.Pace)
	}
	return nil
}

// DialogueTurn is one speaker's single contribution to a script. The order of
// turns in a script is the speaking order in the final track.
type DialogueTurn struct {
	// Speaker is the persona name. Required.
	Speaker string `yaml:"speaker" json:"speaker"`

	// Text is the plain prose to vocalise. It may be empty, in which case the
	// synthetic fallback produces a short near-silent segment.
	Text string `yaml:"text" json:"text"`

	// Voice carries the turn's voice characteristics.
	Voice VoiceCharacteristics `yaml:"voice_characteristics" json:"voice_characteristics"`
}

// Validate checks the turn against the input contract. All failures wrap
// [ErrMalformedTurn].
func (t DialogueTurn) Validate() error {
	if strings.TrimSpace(t.Speaker) == "" {
		return fmt.Errorf("%w: speaker is required", ErrMalformedTurn)
	}
	if err := t.Voice.Validate(); err != nil {
		return fmt.Errorf("speaker %q: %w", t.Speaker, err)
	}
	return nil
}

// VoiceProfile is the resolved, persona-specific parameter set used to shape
// synthesized speech. Profiles are created once per persona and never mutated.
type VoiceProfile struct {
	// Name is the persona name the profile belongs to.
	Name string

	Tone     Tone
	Pace     Pace
	Emphasis string

	// PitchModifier scales the perceived pitch (1.0 = unchanged).
	PitchModifier float64

	// SpeedModifier scales the speaking rate (1.0 = unchanged).
	SpeedModifier float64
}

// Characteristics returns the profile's characteristics in the form consumed
// by backend adapters.
func (p VoiceProfile) Characteristics() VoiceCharacteristics {
	return VoiceCharacteristics{Tone: p.Tone, Pace: p.Pace, Emphasis: p.Emphasis}
}

// NewVoiceProfile builds a profile for name from v. Defaults are applied to
// empty characteristics, and both modifiers start at 1.0.
func NewVoiceProfile(name string, v VoiceCharacteristics) VoiceProfile {
	v = v.Normalized()
	return VoiceProfile{
		Name:          name,
		Tone:          v.Tone,
		Pace:          v.Pace,
		Emphasis:      v.Emphasis,
		PitchModifier: 1.0,
		SpeedModifier: 1.0,
	}
}
