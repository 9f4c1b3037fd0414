package lua

import (
	"fmt"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/samaelod/fixdesk/types"
)

// ReadProfiles runs a Lua profile file and maps the table it returns.
func ReadProfiles(path string) (*types.Profiles, error) {
	L := lua.NewState()
	defer L.Close()

	// Execute Lua file
	if err := L.DoFile(path); err != nil {
		return nil, err
	}

	// Lua file returns profile table
	lv := L.Get(-1)
	table, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua file did not return a table")
	}

	var profiles types.Profiles

	// Map Lua table → Go struct
	if err := gluamapper.Map(table, &profiles); err != nil {
		return nil, err
	}

	if err := ValidateProfiles(&profiles); err != nil {
		return nil, fmt.Errorf("invalid profiles: %w", err)
	}

	return &profiles, nil
}

func ValidateProfiles(p *types.Profiles) error {
	names := make(map[string]bool)

	for i, s := range p.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session %d: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("session %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true

		if _, err := s.Endpoint(); err != nil {
			return fmt.Errorf("session %q: %w", s.Name, err)
		}
	}

	for i, m := range p.Messages {
		if m.Value == "" {
			return fmt.Errorf("message %d: value is required", i)
		}
	}

	return nil
}
