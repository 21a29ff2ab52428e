// Package nmeafeed defines the contract for the GNSS NMEA text parser (§1's
// out-of-scope external collaborator: bytes the GNSS Framing Codec forwards
// that do not belong to a binary frame) and ships one reference adapter
// binding that contract to github.com/adrianmo/go-nmea. The core itself
// only depends on the Feed interface, generalized from the teacher's
// internal/parser.NMEAParser struct-return shape to an update-producing
// contract the orchestrator can wire straight into the state machine and
// telemetry store.
package nmeafeed

import "time"

// Update is what a Feed implementation extracts from one NMEA sentence.
// Zero-value fields whose corresponding Has* flag is false were not present
// in the sentence and must not overwrite prior telemetry.
type Update struct {
	HasPosition   bool
	Latitude      float64
	Longitude     float64
	Altitude      float64
	HasFixQuality bool
	Satellites    int
	HDOP          float64
	HasSpeed      bool
	SpeedKPH      float64
	CourseDeg     float64
	HasDateTime   bool
	Year          int
	Month         int
	Day           int
	Hour          int
	Minute        int
	Second        int
	LocationValid bool
	DateTimeValid bool
}

// Feed turns one raw NMEA text line into zero or more telemetry updates.
// The GNSS Framing Codec hands it every byte sequence that isn't part of a
// binary frame, line by line. A Feed implementation that cannot parse a
// line returns ok=false; the caller simply discards it.
type Feed interface {
	FeedLine(line string) (Update, bool)
}

// Clock abstracts time.Now for reference adapters that need to stamp
// updates lacking their own notion of "now" (e.g. GSA has no timestamp).
type Clock func() time.Time
