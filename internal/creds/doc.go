// Package creds owns the persisted WhatsApp pairing credentials for the
// gateway. It wraps whatsmeow's device store behind a single-writer handle
// so credential rotation persists and unlink-induced wipes cannot interleave.
package creds
