package speech

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/hub"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type speechFrame struct {
	Type    string `json:"type"`
	Payload struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"payload"`
}

func readFrame(t *testing.T, c *hub.Client, wait time.Duration) (speechFrame, bool) {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var f speechFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f, true
	case <-time.After(wait):
		return speechFrame{}, false
	}
}

// A browser speaks the latest speak frame and drops it when its cancel
// arrives. Replaying the frames must leave the second utterance playing.
func TestNarrator_HubFramesFollowCallOrder(t *testing.T) {
	for i := range 50 {
		h := hub.New(observability.NewMetricsForTesting(), discardLogger())
		ctx, cancel := context.WithCancel(context.Background())
		go h.Run(ctx)

		c := hub.NewClient("browser", 64)
		h.Register(c)
		f, ok := readFrame(t, c, 2*time.Second)
		require.True(t, ok)
		require.Equal(t, hub.TypeSnapshot, f.Type)

		n := NewNarrator(h, "fr-CA", observability.NewMetricsForTesting(), discardLogger())
		require.NoError(t, n.SpeakText("first"))
		require.NoError(t, n.SpeakText("second"))

		var playing string
		playingID := ""
		for {
			f, ok := readFrame(t, c, 2*time.Second)
			require.True(t, ok, "run %d: second utterance never sent", i)
			switch f.Type {
			case hub.TypeSpeak:
				playing, playingID = f.Payload.Text, f.Payload.ID
			case hub.TypeSpeechCancel:
				if f.Payload.ID == playingID {
					playing, playingID = "", ""
				}
			}
			if f.Type == hub.TypeSpeak && f.Payload.Text == "second" {
				break
			}
		}

		extra, ok := readFrame(t, c, 50*time.Millisecond)
		assert.False(t, ok, "run %d: unexpected %s frame after second speak", i, extra.Type)
		assert.Equal(t, "second", playing, "run %d", i)

		n.Close()
		cancel()
	}
}
