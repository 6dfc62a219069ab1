package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"pulpit/internal/captions"
	"pulpit/internal/quality"
	"pulpit/internal/services/transcriptapi"
	"pulpit/internal/services/whisperx"
)

// Source names.
const (
	SourceAutoCaption   = quality.SourceAutoCaption
	SourceTranscriptAPI = quality.SourceTranscriptAPI
	SourceSpeechToText  = quality.SourceSpeechToText
)

// Transcript is the text a source produced. Cues are optional.
type Transcript struct {
	Text     string
	Language string
	Cues     []captions.Cue
}

// Source produces a transcript. workDir is a scratch directory owned by
// the coordinator.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request, workDir string) (Transcript, error)
}

// CaptionFetcher writes a caption track and returns its path.
type CaptionFetcher interface {
	Captions(ctx context.Context, url string, languages []string, dir string) (string, error)
}

// TranscriptFetcher returns a track from the external transcript service.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, externalID string, languages []string) (transcriptapi.Result, error)
}

// AudioDownloader fetches the audio stream into dir.
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, url, dir string) (string, error)
}

// Transcriber runs speech-to-text over an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (whisperx.Result, error)
}

// CaptionSource uses the platform caption track.
type CaptionSource struct {
	Fetcher   CaptionFetcher
	Languages []string
	MinChars  int
}

func (s *CaptionSource) Name() string { return SourceAutoCaption }

func (s *CaptionSource) Fetch(ctx context.Context, req Request, workDir string) (Transcript, error) {
	path, err := s.Fetcher.Captions(ctx, req.URL(), s.Languages, workDir)
	if err != nil {
		return Transcript{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("read captions: %w", err)
	}
	format, err := captions.DetectFormat(path, data)
	if err != nil {
		return Transcript{}, err
	}
	raw, err := captions.Parse(data, format)
	if err != nil {
		return Transcript{}, err
	}
	cues := captions.Clean(raw)
	text := captions.JoinText(cues)
	if n := utf8.RuneCountInString(text); n <= s.MinChars {
		return Transcript{}, fmt.Errorf("caption text too short: %d chars, need more than %d", n, s.MinChars)
	}
	return Transcript{Text: text, Language: captionLanguage(path), Cues: cues}, nil
}

// captionLanguage reads the language tag from names like captions.pt-BR.vtt.
func captionLanguage(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, lang, ok := strings.Cut(name, "."); ok {
		return lang
	}
	return ""
}

// TranscriptAPISource uses the external transcript service.
type TranscriptAPISource struct {
	Client    TranscriptFetcher
	Languages []string
}

func (s *TranscriptAPISource) Name() string { return SourceTranscriptAPI }

func (s *TranscriptAPISource) Fetch(ctx context.Context, req Request, _ string) (Transcript, error) {
	result, err := s.Client.Fetch(ctx, req.ExternalID, s.Languages)
	if err != nil {
		return Transcript{}, err
	}
	cues := captions.Clean(result.Cues)
	text := captions.JoinText(cues)
	if text == "" {
		return Transcript{}, errors.New("transcript service returned empty text")
	}
	return Transcript{Text: text, Language: result.Language, Cues: cues}, nil
}

// SpeechSource downloads audio and transcribes it.
type SpeechSource struct {
	Downloader  AudioDownloader
	Transcriber Transcriber
}

func (s *SpeechSource) Name() string { return SourceSpeechToText }

func (s *SpeechSource) Fetch(ctx context.Context, req Request, workDir string) (Transcript, error) {
	audio, err := s.Downloader.DownloadAudio(ctx, req.URL(), workDir)
	if err != nil {
		return Transcript{}, err
	}
	result, err := s.Transcriber.Transcribe(ctx, audio, req.Language)
	if err != nil {
		return Transcript{}, err
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return Transcript{}, whisperx.ErrEmptyTranscript
	}
	cues := make([]captions.Cue, 0, len(result.Segments))
	for _, seg := range result.Segments {
		cues = append(cues, captions.Cue{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		})
	}
	lang := result.DetectedLanguage
	if lang == "" {
		lang = req.Language
	}
	return Transcript{Text: text, Language: lang, Cues: cues}, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
