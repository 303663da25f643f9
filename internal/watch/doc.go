// Package watch feeds filesystem changes into the engine as task
// triggers.
//
// One recursive fsnotify watcher covers the project root; each task
// with watch patterns gets a Matcher over relative slash paths.
// Content hashing, when a task opts in, filters out events that did
// not change any bytes.
package watch
