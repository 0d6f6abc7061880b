package types

import (
	"errors"
	"testing"
)

func TestDialogueTurn_Validate(t *testing.T) {
	tests := []struct {
		name    string
		turn    DialogueTurn
		wantErr bool
	}{
		{name: "minimal", turn: DialogueTurn{Speaker: "Sarah"}},
		{name: "full", turn: DialogueTurn{Speaker: "Sarah", Text: "Welcome.", Voice: VoiceCharacteristics{Tone: ToneProfessional, Pace: PaceSlow, Emphasis: "clear"}}},
		{name: "free-form emphasis", turn: DialogueTurn{Speaker: "Mike", Voice: VoiceCharacteristics{Emphasis: "whispered"}}},
		{name: "blank speaker", turn: DialogueTurn{Speaker: "  ", Text: "hi"}, wantErr: true},
		{name: "bad tone", turn: DialogueTurn{Speaker: "Mike", Voice: VoiceCharacteristics{Tone: "sarcastic"}}, wantErr: true},
		{name: "bad pace", turn: DialogueTurn{Speaker: "Mike", Voice: VoiceCharacteristics{Pace: "glacial"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.turn.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTurn) {
					t.Errorf("err = %v, want ErrMalformedTurn", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestVoiceCharacteristics_Normalized(t *testing.T) {
	got := VoiceCharacteristics{Emphasis: "  "}.Normalized()
	want := VoiceCharacteristics{Tone: ToneNeutral, Pace: PaceModerate, Emphasis: DefaultEmphasis}
	if got != want {
		t.Errorf("Normalized = %+v, want %+v", got, want)
	}

	set := VoiceCharacteristics{Tone: TonePassionate, Pace: PaceFast, Emphasis: "bold"}
	if set.Normalized() != set {
		t.Errorf("Normalized changed explicit values: %+v", set.Normalized())
	}
}

func TestNewVoiceProfile(t *testing.T) {
	p := NewVoiceProfile("Sarah", VoiceCharacteristics{Tone: ToneProfessional})
	if p.Name != "Sarah" || p.Tone != ToneProfessional || p.Pace != PaceModerate {
		t.Errorf("profile = %+v", p)
	}
	if p.PitchModifier != 1 || p.SpeedModifier != 1 {
		t.Errorf("modifiers = %v/%v, want 1/1", p.PitchModifier, p.SpeedModifier)
	}
	want := VoiceCharacteristics{Tone: ToneProfessional, Pace: PaceModerate, Emphasis: DefaultEmphasis}
	if p.Characteristics() != want {
		t.Errorf("Characteristics = %+v, want %+v", p.Characteristics(), want)
	}
}
