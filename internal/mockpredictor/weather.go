package mockpredictor

import (
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

const (
	seaLevelPressure = 1013.25
	westWind         = 270
	// inlandLon separates coastal readings from the hotter, drier interior.
	inlandLon = -118.0
)

// Weather returns seasonal fire weather for coord: hot and dry from June to
// September, mild and damp from December to February. Inland coordinates
// run hotter, drier and windier.
func (m *Model) Weather(coord domain.Coordinate) domain.WeatherConditions {
	now := m.clock.Now()

	tempF, humidity, windMph := 75.0, 45.0, 10.0
	switch now.Month() {
	case time.June, time.July, time.August, time.September:
		tempF, humidity, windMph = 85, 30, 12
	case time.December, time.January, time.February:
		tempF, humidity, windMph = 65, 60, 8
	}
	if coord.Lon > inlandLon {
		tempF += 10
		humidity -= 10
		windMph += 3
	}
	humidity = max(10, humidity)

	drought := droughtCode(tempF, humidity, 0)
	return domain.WeatherConditions{
		TemperatureF:     tempF,
		TemperatureC:     round((tempF-32)*5/9, 1),
		Humidity:         humidity,
		WindSpeedMph:     windMph,
		WindSpeedKmh:     round(windMph/0.621371, 1),
		WindDirection:    westWind,
		Pressure:         seaLevelPressure,
		DroughtCode:      round(drought, 1),
		FireWeatherIndex: round(fireWeatherIndex(tempF, humidity, windMph, drought), 1),
		RedFlagWarning:   redFlag(tempF, humidity, windMph),
		LastUpdated:      now.Format(isoLayout),
	}
}

func droughtCode(tempF, humidity, precipitation float64) float64 {
	heat := max(0, (tempF-32)/100)
	dryness := max(0, (100-humidity)/100)
	rainless := max(0, 1-precipitation/10)
	return min(100, (heat+dryness+rainless)*33.33)
}

func fireWeatherIndex(tempF, humidity, windMph, drought float64) float64 {
	fineFuel := clamp(100-humidity+(tempF-32)*0.5, 0, 100)
	spread := max(0, fineFuel*windMph*0.05)
	buildup := max(0, drought)
	return clamp(spread*buildup*0.01, 0, 100)
}

// redFlag reports whether at least two of heat, low humidity and high wind
// are present.
func redFlag(tempF, humidity, windMph float64) bool {
	n := 0
	for _, c := range []bool{tempF >= 85, humidity <= 20, windMph >= 25} {
		if c {
			n++
		}
	}
	return n >= 2
}
