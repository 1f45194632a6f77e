// Package main prints today's natural date and sun and moon events.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/devskill-org/natural-time/naturaltime"
)

func main() {
	engine := naturaltime.NewEngine(nil, nil)

	// Riga
	lat, lon := 56.9496, 24.1052

	nd, err := engine.NaturalDate(time.Now().UnixMilli(), lon)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Natural date:", nd)

	sun, err := engine.SunEvents(nd, lat)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Sunrise: %s, Sunset: %s\n", format(sun.Sunrise), format(sun.Sunset))

	moon, err := engine.MoonPosition(nd, lat)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Moon phase: %.1f°, illuminated: %.0f%%\n", moon.PhaseDeg, moon.Illumination*100)

	m, err := engine.MustachesRange(nd, lat)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Mustaches angle: %.2f°\n", m.AverageAngle)
}

func format(et naturaltime.EventTime) string {
	if !et.Found() {
		return et.Status.String()
	}
	return fmt.Sprintf("%.2f°", et.Deg)
}
