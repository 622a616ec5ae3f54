package supervisor

// Autostart starts every child of every `autostart` program, run once at
// startup before the supervision loop begins (spec.md §2 "Autostart /
// shutdown").
func (s *Supervisor) Autostart() {
	for name, p := range s.programs {
		if p.Active && p.Config.AutoStart {
			s.handleStart([]string{name}, false)
		}
	}
}
