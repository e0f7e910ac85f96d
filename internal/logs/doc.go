// Package logs reads camctl's own daily log files and trims backend log
// content for display.
//
// Tail returns the last lines of a file together with the offset where the
// next read should start, and Follow streams lines appended after that
// offset until the context ends. LastLines applies the same bounded ring
// buffer to any reader, which is how `camctl admin logs FILE --lines N`
// trims files fetched from the recorder.
package logs
