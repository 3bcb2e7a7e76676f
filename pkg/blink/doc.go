// Package blink drives indicator LEDs with time-based blink patterns and
// keeps a bounded log of logical on/off transitions.
//
// An [Indicator] is polled: every call to Update evaluates the current mode
// (and any scheduled burst) at the clock's current time. Pins are only
// written when the logical state flips. Disabling pins stops the toggling but
// not the logical model, so transition records keep flowing while the LEDs
// are dark.
//
// The transition log is a [Ring]; the owner drains it with SwitchTimes and
// persists the records, typically once the ring is half full.
package blink
