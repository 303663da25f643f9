// Package hashes persists per-file content digests so fs events that
// do not change file contents (editor save dances, touch, chmod) stop
// retriggering tasks across restarts.
//
// Two drivers share one Store interface: a flat text file keeping
// "path digest" lines, and a sqlite database for large trees. The
// Tracker on top computes sha256 digests and answers the only question
// anyone asks: did this path really change.
package hashes
