// Package storage is the bot's persistence layer.
//
// It holds:
//   - The user directory (everyone who ever talked to the bot)
//   - The premium and banned membership sets
//   - The premium channel registry
//   - The broadcast delivery log
package storage
