package geomath

import "math"

const earthRadiusMeters = 6371000.0

// Distance returns the haversine great-circle distance in meters between two
// coordinate pairs.
func Distance(lat1 float64, lon1 float64, lat2 float64, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Bearing returns the initial great-circle bearing in degrees [0, 360) from
// point 1 towards point 2.
func Bearing(lat1 float64, lon1 float64, lat2 float64, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(bearing+360, 360)
}

// IsApproaching reports whether a vehicle heading vehicleBearing is moving
// towards the target, within toleranceDeg of the direct bearing. The angular
// difference accounts for wraparound at 0/360.
func IsApproaching(vehicleLat float64, vehicleLon float64, vehicleBearing float64, targetLat float64, targetLon float64, toleranceDeg float64) bool {
	bearingToTarget := Bearing(vehicleLat, vehicleLon, targetLat, targetLon)

	difference := math.Abs(bearingToTarget - math.Mod(vehicleBearing+360, 360))
	if difference > 180 {
		difference = 360 - difference
	}

	return difference <= toleranceDeg
}

// ETAMinutes estimates arrival time in whole minutes, rounded up. A zero or
// negative speed is replaced with defaultSpeedKmh so we never divide by zero,
// and the result is always at least 1.
func ETAMinutes(distanceMeters float64, speedKmh float64, defaultSpeedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = defaultSpeedKmh
	}

	speedMetersPerMinute := speedKmh * 1000 / 60

	minutes := int(math.Ceil(distanceMeters / speedMetersPerMinute))
	if minutes < 1 {
		minutes = 1
	}

	return minutes
}

// DestinationPoint projects a point along a bearing for the given distance on
// the great circle. Used for dead reckoning of stale vehicles.
func DestinationPoint(lat float64, lon float64, bearingDeg float64, distanceMeters float64) (float64, float64) {
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	bearingRad := bearingDeg * math.Pi / 180
	angular := distanceMeters / earthRadiusMeters

	destLatRad := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))
	destLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(destLatRad),
	)

	destLat := destLatRad * 180 / math.Pi
	destLon := destLonRad * 180 / math.Pi

	// normalise longitude back into [-180, 180)
	destLon = math.Mod(destLon+540, 360) - 180

	return destLat, destLon
}
