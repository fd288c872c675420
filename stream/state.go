package stream

import "fmt"

// State is the state of one buffer slot.
// Every slot cycles through Empty, Filling, Filled and Playing in exactly this order.
type State uint8

const (
	// Empty slots may be claimed by the producer.
	Empty State = iota
	// Filling slots are written by the producer and by nobody else.
	Filling
	// Filled slots wait for the consumer.
	Filled
	// Playing slots are read by the output.
	Playing
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Filling:
		return "Filling"
	case Filled:
		return "Filled"
	case Playing:
		return "Playing"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
