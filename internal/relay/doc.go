// Package relay performs the per-message backend round trip. It races the
// HTTP call against a one-shot acknowledgment timer so slow backends get a
// "working on it" notice, and converts every failure into a bounded
// user-visible reply string rather than an error.
package relay
