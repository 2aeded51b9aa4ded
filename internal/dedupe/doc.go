// Package dedupe provides a time-bounded cache of seen message IDs so the
// dispatcher can drop messages the network redelivers after a reconnect.
package dedupe
