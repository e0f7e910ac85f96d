// Package catalog holds the client-side view of the recording archive.
//
// The Catalog keeps the video list, the selected video, the most recent frame
// preview and the last exported subclip. Every operation is one gateway round
// trip whose result is applied when it resolves, so overlapping calls settle
// in resolution order. Frame previews are the exception: each request carries
// a sequence tag and only the newest request may touch the state.
package catalog
