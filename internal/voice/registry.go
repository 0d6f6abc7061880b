// Package voice turns dialogue turns into canonical audio and scripts into a
// finished track.
//
// [Registry] holds one immutable [types.VoiceProfile] per speaker.
// [Synthesizer] renders a single turn through the backend chain, falling back
// to the formant generator when every real backend fails. [Manager] runs a
// whole script through the synthesizer and the assembler and exports the
// result.
package voice

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/scriptcast/pkg/types"
)

// Registry maps speaker names to voice profiles. The first registration of a
// name wins; later calls return the stored profile unchanged. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]types.VoiceProfile
	log      *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger selects slog.Default().
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		profiles: make(map[string]types.VoiceProfile),
		log:      log,
	}
}

// RegisterOrGet returns the profile for name, creating it from v if the name
// has not been seen before.
func (r *Registry) RegisterOrGet(name string, v types.VoiceCharacteristics) types.VoiceProfile {
	p, _ := r.Register(types.NewVoiceProfile(name, v))
	return p
}

// Register stores p under p.Name unless a profile with that name already
// exists. It returns the stored profile and whether p was the one stored.
func (r *Registry) Register(p types.VoiceProfile) (types.VoiceProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[p.Name]; ok {
		if existing.Characteristics() != p.Characteristics() {
			r.log.Debug("voice profile already registered; keeping the first",
				"speaker", p.Name,
				"kept", existing.Characteristics(),
				"ignored", p.Characteristics(),
			)
		}
		return existing, false
	}
	r.profiles[p.Name] = p
	r.log.Debug("voice profile registered",
		"speaker", p.Name,
		"tone", p.Tone,
		"pace", p.Pace,
		"emphasis", p.Emphasis,
	)
	return p, true
}

// Lookup returns the profile registered under name.
func (r *Registry) Lookup(name string) (types.VoiceProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[name]
	return p, ok
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles)
}

// Profiles returns a snapshot of all profiles sorted by speaker name.
func (r *Registry) Profiles() []types.VoiceProfile {
	r.mu.Lock()
	out := make([]types.VoiceProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b types.VoiceProfile) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
