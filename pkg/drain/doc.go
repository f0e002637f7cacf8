// See drain.go. Polling is cheap and connections self-terminate without a
// central set traversal, which spreads closes out over the drain horizon
// naturally instead of all at once.
package drain
