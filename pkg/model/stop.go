package model

// Stop is a static reference record. Supplied as a periodically refreshed
// read-only snapshot, immutable within a pipeline run.
type Stop struct {
	PrimaryIdentifier string

	Name string

	Latitude  float64
	Longitude float64

	RouteIDs []string
}
