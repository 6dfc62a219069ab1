// Package pipeline turns pending videos into annotated transcripts.
//
// Processor handles one video: acquire a transcript, score it, persist it,
// split it into retrieval segments, then detect scripture references and
// tag themes. Acquisition failures end the video as failed or too_long;
// annotation failures are logged and the video still completes.
//
// Manager runs a bounded pool of workers. Each worker claims the next
// pending video atomically in the store, so no video is processed twice at
// the same time.
package pipeline
