package types

// Group is a security group together with its permission grants. Group data
// is read fresh at the start of each run and never cached across runs.
type Group struct {
	ID          string
	Name        string
	Description string
	VPCID       string
	OwnerID     string
	Ingress     []Grant
	Egress      []Grant
}

// Grants returns the group's grants for one direction.
func (g Group) Grants(dir Direction) []Grant {
	if dir == DirectionEgress {
		return g.Egress
	}
	return g.Ingress
}

// GroupSnapshot is an immutable point-in-time view of the groups visible to
// one run, indexed by id and by name separately so the two keyspaces cannot
// collide. Build it once per run and treat it as read-only afterwards.
type GroupSnapshot struct {
	byID   map[string]Group
	byName map[string]Group
}

// NewGroupSnapshot indexes groups by id and by name. Names are only unique
// per VPC on the provider side, so callers list with a VPC filter; if two
// groups still share a name, the first one listed wins.
func NewGroupSnapshot(groups []Group) GroupSnapshot {
	s := GroupSnapshot{
		byID:   make(map[string]Group, len(groups)),
		byName: make(map[string]Group, len(groups)),
	}
	for _, g := range groups {
		if g.ID != "" {
			if _, ok := s.byID[g.ID]; !ok {
				s.byID[g.ID] = g
			}
		}
		if g.Name != "" {
			if _, ok := s.byName[g.Name]; !ok {
				s.byName[g.Name] = g
			}
		}
	}
	return s
}

// ByID looks up a group by its provider-assigned id.
func (s GroupSnapshot) ByID(id string) (Group, bool) {
	g, ok := s.byID[id]
	return g, ok
}

// ByName looks up a group by name.
func (s GroupSnapshot) ByName(name string) (Group, bool) {
	g, ok := s.byName[name]
	return g, ok
}

// Len returns the number of groups in the snapshot.
func (s GroupSnapshot) Len() int {
	return len(s.byID)
}
