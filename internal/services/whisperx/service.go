package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pulpit/internal/services"
)

// ErrEmptyTranscript is returned when WhisperX ran but produced no text.
var ErrEmptyTranscript = errors.New("whisperx produced no text")

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg          Config
	ffmpegBinary string
	run          services.CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		run:          runWithTorchEnv,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	if runner != nil {
		s.run = runner
	}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the outcome of a transcription run.
type Result struct {
	Text                string
	DetectedLanguage    string
	LanguageProbability float64
	// Duration is the end timestamp of the last recognized segment, in seconds.
	Duration float64
	Segments []Segment
}

type payload struct {
	Segments            []Segment `json:"segments"`
	Language            string    `json:"language"`
	LanguageProbability float64   `json:"language_probability"`
}

// Transcribe converts audioPath to WAV and runs WhisperX over it with voice
// activity filtering. Output files are written next to the audio file, so
// callers should pass a path inside a scratch directory they clean up.
func (s *Service) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	var result Result
	if strings.TrimSpace(audioPath) == "" {
		return result, services.Wrap(services.ErrValidation, "whisperx", "transcribe", "audio path required", nil)
	}
	workDir := filepath.Dir(audioPath)
	wavPath := filepath.Join(workDir, "whisperx-input.wav")
	if _, err := s.run(ctx, s.ffmpegBinary, buildExtractArgs(audioPath, wavPath)...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "whisperx", "extract audio", "", err)
	}
	if _, err := s.run(ctx, UVXCommand, s.buildArgs(wavPath, workDir, language)...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "", err)
	}

	jsonPath := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))+".json")
	parsed, err := loadPayload(jsonPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "whisperx", "read output", "", err)
	}
	result = parsed.toResult()
	if result.Text == "" {
		return result, ErrEmptyTranscript
	}
	return result, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := isoLanguage(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func loadPayload(jsonPath string) (payload, error) {
	var parsed payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return parsed, err
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return parsed, fmt.Errorf("parse whisperx json: %w", err)
	}
	return parsed, nil
}

func (p payload) toResult() Result {
	parts := make([]string, 0, len(p.Segments))
	segments := make([]Segment, 0, len(p.Segments))
	var duration float64
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		seg.Text = text
		segments = append(segments, seg)
		if seg.End > duration {
			duration = seg.End
		}
	}
	return Result{
		Text:                strings.Join(parts, " "),
		DetectedLanguage:    isoLanguage(p.Language),
		LanguageProbability: p.LanguageProbability,
		Duration:            duration,
		Segments:            segments,
	}
}

// isoLanguage reduces tags like "pt-BR" or "por" to the two-letter code
// WhisperX accepts.
func isoLanguage(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if idx := strings.IndexAny(value, "-_"); idx > 0 {
		value = value[:idx]
	}
	switch value {
	case "por":
		return "pt"
	case "eng":
		return "en"
	case "spa":
		return "es"
	}
	if len(value) != 2 {
		return ""
	}
	return value
}

// runWithTorchEnv forces the legacy torch.load behaviour that WhisperX and
// pyannote checkpoints still depend on.
func runWithTorchEnv(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, lastLine(string(output)))
	}
	return output, nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
