// Package whisperx wraps the WhisperX speech-to-text tool used as the final
// transcript source.
//
// A transcription run converts the downloaded audio to 16kHz mono WAV with
// ffmpeg, invokes WhisperX through uvx with voice activity detection enabled,
// and reads the JSON output back into a Result. Configuration options (model,
// CUDA, VAD method) are passed via Config.
package whisperx
