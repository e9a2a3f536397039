package core

// Environment selects logging behavior and other deployment-dependent
// defaults.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps a config value to a known environment. Anything
// that is not production runs with development defaults (debug logging,
// console output).
func ParseEnvironment(v string) Environment {
	if Environment(v) == Production {
		return Production
	}
	return Development
}
