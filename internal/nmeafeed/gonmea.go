package nmeafeed

import (
	"github.com/adrianmo/go-nmea"
)

// GoNMEAFeed is the reference Feed adapter backed by go-nmea. It is
// supporting infrastructure demonstrating one concrete binding of the Feed
// contract, not part of the core's tested hot path — the core depends only
// on the Feed interface.
type GoNMEAFeed struct{}

// NewGoNMEAFeed creates a GoNMEAFeed.
func NewGoNMEAFeed() *GoNMEAFeed { return &GoNMEAFeed{} }

// FeedLine implements Feed.
func (f *GoNMEAFeed) FeedLine(line string) (Update, bool) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Update{}, false
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		quality := s.FixQuality != nmea.Invalid
		return Update{
			HasPosition:   true,
			Latitude:      s.Latitude,
			Longitude:     s.Longitude,
			Altitude:      s.Altitude,
			HasFixQuality: true,
			Satellites:    int(s.NumSatellites),
			HDOP:          s.HDOP,
			LocationValid: quality,
		}, true

	case nmea.RMC:
		valid := s.Validity == nmea.ValidRMC
		return Update{
			HasSpeed:      true,
			SpeedKPH:      s.Speed * 1.852, // knots to km/h
			CourseDeg:     s.Course,
			HasDateTime:   true,
			Year:          2000 + s.Date.YY,
			Month:         s.Date.MM,
			Day:           s.Date.DD,
			Hour:          s.Time.Hour,
			Minute:        s.Time.Minute,
			Second:        s.Time.Second,
			LocationValid: valid,
			DateTimeValid: valid,
			HasPosition:   true,
			Latitude:      s.Latitude,
			Longitude:     s.Longitude,
		}, true

	default:
		return Update{}, false
	}
}
