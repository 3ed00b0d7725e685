// Package components holds the leaderboard fragments pushed over the stream and embedded in pages.
package components
