package program

// Program is a named configuration entry describing how to spawn and
// manage one or more child processes (spec.md §3 "Program").
type Program struct {
	Name     string
	Config   Config
	Template SpawnTemplate
	// Active is false for the inactive-alias twin of a superseded program
	// kept around during reload while its old children drain (spec.md §3,
	// §4.5). Canonical programs are always Active.
	Active bool
}

// New builds a Program from a name and config, preparing its spawn
// template once so every child spawn reuses the same descriptor.
func New(name string, cfg Config) (*Program, error) {
	tpl, err := BuildSpawnTemplate(cfg)
	if err != nil {
		return nil, err
	}
	return &Program{Name: name, Config: cfg, Template: tpl, Active: true}, nil
}

// InactivePrefix is prepended to a program's name to form its reserved
// alias while it drains during a reload (spec.md §4.5, §9).
const InactivePrefix = "Inactive:"
