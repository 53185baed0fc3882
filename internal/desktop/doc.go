// Package desktop connects the hunter to the real screen and input devices.
//
// Screen captures one display per call with kbinani/screenshot and hands
// back a grayscale frame whose bounds are the display's desktop
// coordinates. Input moves the pointer and clicks, or taps a key, through
// robotgo.
//
// Both types are stateless apart from their configuration. Calls are
// fire-and-forget: a nil error from Click means the event was injected,
// not that the game acted on it.
//
// Tests replace the package-level capture and input hooks; nothing here
// talks to a display during go test.
package desktop
