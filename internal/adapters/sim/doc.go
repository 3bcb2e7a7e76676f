// Package sim provides software stand-ins for the logger hardware: a
// clock-driven acquisition ring, console pins and control input, and
// synthetic environmental sensors. It backs bench runs and tests.
package sim
