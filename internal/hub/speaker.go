package hub

import (
	"context"
	"strings"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/google/uuid"
)

const (
	perWord        = 400 * time.Millisecond
	minUtterance   = time.Second
	maxUtterance   = 30 * time.Second
	speechTrailing = 500 * time.Millisecond
)

type speakPayload struct {
	ID string `json:"id"`
	domain.Utterance
}

type cancelPayload struct {
	ID string `json:"id"`
}

// Speak asks connected clients to synthesize u and blocks until a client
// reports completion, the estimated duration elapses or ctx is cancelled.
// Cancellation is forwarded to clients.
func (h *Hub) Speak(ctx context.Context, u domain.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.ClientCount() == 0 {
		return domain.ErrSpeechUnavailable
	}

	id := uuid.NewString()
	done := make(chan struct{})
	h.speechMu.Lock()
	h.pending[id] = done
	h.speechMu.Unlock()
	defer func() {
		h.speechMu.Lock()
		delete(h.pending, id)
		h.speechMu.Unlock()
	}()

	timer := h.clock.NewTimer(EstimateDuration(u.Text))
	defer timer.Stop()

	h.Broadcast(TypeSpeak, speakPayload{ID: id, Utterance: u})

	select {
	case <-done:
		return nil
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		h.Broadcast(TypeSpeechCancel, cancelPayload{ID: id})
		return ctx.Err()
	}
}

// SpeechDone records that a client finished speaking utterance id.
func (h *Hub) SpeechDone(id string) {
	h.speechMu.Lock()
	defer h.speechMu.Unlock()
	if ch, ok := h.pending[id]; ok {
		close(ch)
		delete(h.pending, id)
	}
}

// PendingUtterances returns the number of utterances awaiting completion.
func (h *Hub) PendingUtterances() int {
	h.speechMu.Lock()
	defer h.speechMu.Unlock()
	return len(h.pending)
}

// SetVoices replaces the voice list reported by clients.
func (h *Hub) SetVoices(voices []domain.Voice) {
	h.speechMu.Lock()
	defer h.speechMu.Unlock()
	h.voices = append([]domain.Voice(nil), voices...)
}

// Voices returns the voices last reported by a client.
func (h *Hub) Voices() []domain.Voice {
	h.speechMu.Lock()
	defer h.speechMu.Unlock()
	return append([]domain.Voice(nil), h.voices...)
}

// EstimateDuration approximates how long text takes to speak.
func EstimateDuration(text string) time.Duration {
	d := time.Duration(len(strings.Fields(text)))*perWord + speechTrailing
	return min(max(d, minUtterance), maxUtterance)
}
