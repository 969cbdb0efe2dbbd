// ABOUTME: Group volume table
// ABOUTME: Maps volume group names to a scalar volume
package session

const (
	// DefaultGroup is used when a request names no group
	DefaultGroup = "default"

	// DefaultVolume is seeded for DefaultGroup when the registry starts
	DefaultVolume = 1.0
)

// GroupVolumes maps group names to volumes. The range is caller-defined.
// It is not safe for concurrent use; the Registry guards it.
type GroupVolumes struct {
	volumes map[string]float64
}

// NewGroupVolumes creates an empty table
func NewGroupVolumes() *GroupVolumes {
	return &GroupVolumes{volumes: make(map[string]float64)}
}

// Set stores the volume for group (DefaultGroup when empty)
func (g *GroupVolumes) Set(group string, volume float64) {
	g.volumes[Resolve(group, DefaultGroup)] = volume
}

// Get returns the volume for group, 0 when the group was never set
func (g *GroupVolumes) Get(group string) float64 {
	return g.volumes[Resolve(group, DefaultGroup)]
}

// Seed sets the volume only if group has no entry yet
func (g *GroupVolumes) Seed(group string, volume float64) {
	group = Resolve(group, DefaultGroup)
	if _, ok := g.volumes[group]; !ok {
		g.volumes[group] = volume
	}
}

// Groups returns a copy of the table
func (g *GroupVolumes) Groups() map[string]float64 {
	out := make(map[string]float64, len(g.volumes))
	for k, v := range g.volumes {
		out[k] = v
	}
	return out
}
