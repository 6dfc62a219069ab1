// Package ytdlp wraps the yt-dlp binary for video metadata, caption tracks
// and audio downloads.
//
// All output goes to a caller supplied directory. The caller owns that
// directory and removes it when the run ends.
package ytdlp
