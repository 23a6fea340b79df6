// Package speech drives spoken turn-by-turn guidance. A Narrator owns at most
// one utterance at a time; starting a new one cancels the previous one.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// State is the narrator state.
type State int

const (
	Idle State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "idle"
}

// Narrator turns instructions into utterances and hands them to a Speaker.
// A nil Speaker makes every Speak call fail with domain.ErrSpeechUnavailable.
type Narrator struct {
	speaker domain.Speaker
	locale  string
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	current domain.Utterance
	onIdle  func()
	// last is closed when the most recently started speaker call returns.
	last chan struct{}

	wg sync.WaitGroup
}

// NewNarrator creates a Narrator speaking in locale.
func NewNarrator(speaker domain.Speaker, locale string, metrics *observability.Metrics, logger *slog.Logger) *Narrator {
	return &Narrator{
		speaker: speaker,
		locale:  locale,
		metrics: metrics,
		logger:  logger.With("component", "narrator"),
	}
}

// OnIdle registers fn to run each time an utterance finishes on its own,
// successfully or not. It is not called for utterances that were superseded
// or stopped.
func (n *Narrator) OnIdle(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onIdle = fn
}

// Speak narrates an instruction using its maneuver template.
func (n *Narrator) Speak(in domain.NavigationInstruction) error {
	return n.SpeakText(domain.UtteranceText(in))
}

// SpeakText cancels any in-flight utterance and starts speaking text. It
// returns once synthesis has been started.
func (n *Narrator) SpeakText(text string) error {
	if n.speaker == nil {
		n.metrics.NarrationUtterances.WithLabelValues("unavailable").Inc()
		return domain.ErrSpeechUnavailable
	}

	u := domain.Utterance{
		Text:   text,
		Locale: n.locale,
		Voice:  SelectVoice(n.speaker.Voices(), n.locale),
	}

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	gen := n.gen
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.state = Speaking
	n.current = u
	prev := n.last
	done := make(chan struct{})
	n.last = done
	n.wg.Add(1)
	n.mu.Unlock()

	go n.run(ctx, cancel, gen, u, prev, done)
	return nil
}

// run waits for the previous speaker call to return before starting, so the
// speaker sees utterances and their cancellations in call order. An utterance
// superseded while waiting never reaches the speaker.
func (n *Narrator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, u domain.Utterance, prev, done chan struct{}) {
	defer n.wg.Done()
	defer close(done)
	defer cancel()

	if prev != nil {
		<-prev
	}
	err := ctx.Err()
	if err == nil {
		err = n.speaker.Speak(ctx, u)
	}
	switch {
	case err == nil:
		n.metrics.NarrationUtterances.WithLabelValues("spoken").Inc()
	case ctx.Err() != nil:
		n.metrics.NarrationUtterances.WithLabelValues("interrupted").Inc()
	case errors.Is(err, domain.ErrSpeechUnavailable):
		n.metrics.NarrationUtterances.WithLabelValues("unavailable").Inc()
		n.logger.Debug("no speech output available", "text", u.Text)
	default:
		n.metrics.NarrationUtterances.WithLabelValues("error").Inc()
		n.logger.Warn("speech synthesis failed", "error", err)
	}

	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return
	}
	n.state = Idle
	n.cancel = nil
	n.current = domain.Utterance{}
	onIdle := n.onIdle
	n.mu.Unlock()

	if onIdle != nil {
		onIdle()
	}
}

// Stop cancels any in-flight utterance and returns to Idle immediately.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.gen++
	n.state = Idle
	n.current = domain.Utterance{}
}

// Close stops narration and waits for speaker calls to return.
func (n *Narrator) Close() {
	n.Stop()
	n.wg.Wait()
}

// State returns the current state.
func (n *Narrator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Current returns the utterance being spoken, if any.
func (n *Narrator) Current() (domain.Utterance, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.state == Speaking
}

// SelectVoice picks the voice for locale: an exact language match first,
// then a voice sharing the language prefix, preferring default voices. An
// empty result means the platform default.
func SelectVoice(voices []domain.Voice, locale string) string {
	if locale == "" {
		return ""
	}
	for _, v := range voices {
		if strings.EqualFold(v.Lang, locale) {
			return v.Name
		}
	}

	lang := languageOf(locale)
	match := ""
	for _, v := range voices {
		if !strings.EqualFold(languageOf(v.Lang), lang) {
			continue
		}
		if v.Default {
			return v.Name
		}
		if match == "" {
			match = v.Name
		}
	}
	return match
}

func languageOf(tag string) string {
	tag = strings.ReplaceAll(tag, "_", "-")
	lang, _, _ := strings.Cut(tag, "-")
	return lang
}
