// Package naturaltime derives natural dates from UTC instants and computes
// the sun and moon events of a natural day.
//
// A natural year starts at the local solar midnight following the December
// solstice. It is divided into 13 moons of 28 days; the one or two days left
// over before the next solstice are rainbow days that belong to no moon.
// Time of day is expressed in degrees: 0° is local solar midnight, 180° is
// local mean solar noon and a full day is 360°.
//
// Basic Usage:
//
//	engine := naturaltime.NewEngine(nil, nil)
//
//	nd, err := engine.NaturalDate(time.Now().UnixMilli(), 24.1052)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sun, err := engine.SunEvents(nd, 56.9496)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if sun.Sunset.Found() {
//		fmt.Printf("%d)%02d)%02d sunset at %.2f°\n", nd.Year, nd.Moon, nd.DayOfMoon, sun.Sunset.Deg)
//	}
//
// Results of the underlying searches are memoized in a cache.Cache owned by
// the Engine; ResetCaches drops them. Event fields that have no occurrence
// on a given day (polar day or night, no moonrise) carry a non-Found
// EventStatus and a NaN degree instead of an error.
package naturaltime
