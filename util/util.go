package util

import (
	"fmt"
	"os"
	"strings"
)

// Errors collects multiple error messages so that a failed startup can
// report every missing variable at once instead of one per restart.
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Add appends an error to the collection.
func (e *Errors) Add(err error) {
	*e = append(*e, err)
}

// RequireEnv reads an environment variable, recording an error in errs if
// it is unset or empty.
func RequireEnv(varName string, errs *Errors) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		errs.Add(fmt.Errorf("environment variable %s must be set", varName))
	}
	return envVar
}

// ValidPort transforms a port string like "8080" into an address suffix
// like ":8080", erroring on non-numeric input.
func ValidPort(port string) (string, error) {
	for _, c := range port {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("given portstring %s is invalid", port)
		}
	}
	return fmt.Sprintf(":%s", port), nil
}
