package config

import "fmt"

// Environment selects which deployment of the remote service to talk to.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"

	// DefaultEnvironment is used when no --environment flag is given.
	DefaultEnvironment = EnvProd
)

// Endpoints groups the URL prefixes of one environment. API serves sample
// status and output downloads; Portal serves authentication, upload targets
// and batch submission.
type Endpoints struct {
	Host   string
	API    string
	Portal string
}

var environmentHosts = map[Environment]string{
	EnvDev:     "https://portal.dev.gpas.ox.ac.uk",
	EnvStaging: "https://portal.staging.gpas.ox.ac.uk",
	EnvProd:    "https://portal.gpas.ox.ac.uk",
}

// ParseEnvironment validates an environment name from the CLI.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if _, ok := environmentHosts[env]; !ok {
		return "", fmt.Errorf("unknown environment %q (expected dev, staging or prod)", s)
	}
	return env, nil
}

// Endpoints returns the URL prefixes for this environment.
func (e Environment) Endpoints() Endpoints {
	host := environmentHosts[e]
	return Endpoints{
		Host:   host,
		API:    host + "/ords/gpas_pub/gpasapi",
		Portal: host + "/ords/grep/electron",
	}
}
