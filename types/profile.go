package types

import "fmt"

// Profile is a named, saved SessionEndpoint.
type Profile struct {
	Name   string
	Host   string
	Port   int
	Sender string
	Target string
	Role   string
}

// Template is a named outbound message the send box can be filled with.
type Template struct {
	Name  string
	Value string
}

// Profiles is the content of one profile file.
type Profiles struct {
	Sessions []Profile
	Messages []Template
}

func (p Profile) Endpoint() (SessionEndpoint, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return SessionEndpoint{}, err
	}
	ep := SessionEndpoint{Host: p.Host, Port: p.Port, SenderID: p.Sender, TargetID: p.Target, Role: role}
	return ep, ep.Validate()
}

// ProfileFor is the inverse of Profile.Endpoint.
func ProfileFor(name string, ep SessionEndpoint) Profile {
	if name == "" {
		name = fmt.Sprintf("%s-%s", ep.SenderID, ep.TargetID)
	}
	return Profile{Name: name, Host: ep.Host, Port: ep.Port, Sender: ep.SenderID, Target: ep.TargetID, Role: ep.Role.String()}
}

// Find returns the session profile with the given name.
func (p *Profiles) Find(name string) (Profile, bool) {
	for _, s := range p.Sessions {
		if s.Name == name {
			return s, true
		}
	}
	return Profile{}, false
}
