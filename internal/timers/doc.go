// Package timers holds the Delay and Interval state machines shared by every
// runtime binding. Bindings supply only the clock specific part: when to fire.
package timers
