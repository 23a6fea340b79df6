package speech

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
)

// ExecSpeaker speaks through a local espeak-ng binary. Cancelling the context
// kills the process.
type ExecSpeaker struct {
	binary string
	logger *slog.Logger

	once   sync.Once
	voices []domain.Voice
}

// NewExecSpeaker creates a speaker running binary.
func NewExecSpeaker(binary string, logger *slog.Logger) *ExecSpeaker {
	return &ExecSpeaker{binary: binary, logger: logger}
}

// Speak runs the synthesizer and waits for it to exit.
func (s *ExecSpeaker) Speak(ctx context.Context, u domain.Utterance) error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("%w: %s not found", domain.ErrSpeechUnavailable, s.binary)
	}
	cmd := exec.CommandContext(ctx, s.binary, espeakArgs(u)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Voices lists the installed voices. The list is read once.
func (s *ExecSpeaker) Voices() []domain.Voice {
	s.once.Do(func() {
		out, err := exec.Command(s.binary, "--voices").Output()
		if err != nil {
			s.logger.Warn("listing espeak voices", "error", err)
			return
		}
		s.voices = parseVoices(string(out))
	})
	return s.voices
}

func espeakArgs(u domain.Utterance) []string {
	voice := u.Voice
	if voice == "" {
		voice = strings.ToLower(languageOf(u.Locale))
	}
	if voice == "" {
		return []string{"--", u.Text}
	}
	return []string{"-v", voice, "--", u.Text}
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  fr-fr           --/M      French             roa/fr               (fr 5)
//
// The language code is used as the voice name since espeak accepts it for -v.
func parseVoices(out string) []domain.Voice {
	var voices []domain.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, domain.Voice{Name: fields[1], Lang: fields[1]})
	}
	return voices
}

// LogSpeaker writes utterances to the log instead of a sound device.
type LogSpeaker struct {
	logger *slog.Logger
	locale string
}

// NewLogSpeaker creates a LogSpeaker advertising a single voice for locale.
func NewLogSpeaker(locale string, logger *slog.Logger) *LogSpeaker {
	return &LogSpeaker{logger: logger, locale: locale}
}

// Speak logs the utterance and returns.
func (s *LogSpeaker) Speak(ctx context.Context, u domain.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("speak", "text", u.Text, "locale", u.Locale, "voice", u.Voice)
	return nil
}

// Voices returns the single log voice.
func (s *LogSpeaker) Voices() []domain.Voice {
	return []domain.Voice{{Name: "log", Lang: s.locale, Default: true}}
}
