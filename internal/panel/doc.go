// Package panel serves the operator status page as an embedded asset.
//
// The page shows the automaton state, lets the operator start and stop
// runs and move the confidence threshold, and streams hunter events from
// the WebSocket into a scrolling log. It talks only to the /api/v1
// endpoints; there is no server-side rendering.
package panel
