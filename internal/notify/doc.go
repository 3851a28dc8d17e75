// Package notify defines where the client reports the outcome of user
// actions ("Logged in successfully", "Failed to load users"). Presentation
// is up to the implementation: a log line, a colored terminal line, or an
// in-memory record for tests.
package notify
