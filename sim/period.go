package sim

import (
	"log"
	"math"
)

// Period is the fixed interval between two consecutive ticks, in the same
// unit as VTime.
type Period float64

func (p Period) mustBeValid() {
	if p <= 0 || math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
		log.Panicf("invalid period %v", float64(p))
	}
}

// Cycle converts a time to the number of periods passed since time 0.
func (p Period) Cycle(time VTime) uint64 {
	p.mustBeValid()

	return uint64(math.Round(float64(time) / float64(p)))
}

// ThisTick returns the current tick time
//
//	             Input
//	             (          ]
//	  |----------|----------|----------|----->
//	                        |
//	                        Output
func (p Period) ThisTick(now VTime) VTime {
	p.mustBeValid()

	if math.IsNaN(float64(now)) {
		log.Panic("invalid time")
	}

	count := math.Ceil(math.Round(float64(now)/float64(p)*10) / 10)

	return VTime(count * float64(p))
}

// NextTick returns the next tick time.
//
//	             Input
//	             [          )
//	  |----------|----------|----------|----->
//	                        |
//	                        Output
func (p Period) NextTick(now VTime) VTime {
	p.mustBeValid()

	if math.IsNaN(float64(now)) {
		log.Panic("invalid time")
	}

	count := math.Floor(math.Round(float64(now)/float64(p)*10) / 10)

	return VTime((count + 1) * float64(p))
}
