// Package dedupe provides a bounded, time-limited set of seen message ids so
// the conversation log never shows the same confirmed message twice.
package dedupe
