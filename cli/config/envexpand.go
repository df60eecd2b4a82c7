package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envRef matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ExpandEnv substitutes environment references in a gridcap.yaml body.
//
// ${VAR} becomes the value of VAR, or "" when unset. ${VAR:-default} falls
// back to default when VAR is unset or empty. ${VAR:?message} is required:
// every unset one is reported in the returned error, so a missing capture
// command or bucket fails at load time instead of mid-run.
func ExpandEnv(input string) (string, error) {
	var (
		out     strings.Builder
		missing []error
		last    int
	)
	for _, m := range envRef.FindAllStringSubmatchIndex(input, -1) {
		out.WriteString(input[last:m[0]])
		last = m[1]

		name := input[m[2]:m[3]]
		value := os.Getenv(name)
		if value != "" {
			out.WriteString(value)
			continue
		}
		if m[4] < 0 {
			continue
		}

		op, arg := input[m[4]:m[5]], input[m[6]:m[7]]
		switch op {
		case "-":
			out.WriteString(arg)
		case "?":
			if arg == "" {
				arg = "required"
			}
			missing = append(missing, fmt.Errorf("${%s}: %s", name, arg))
		}
	}
	out.WriteString(input[last:])

	return out.String(), errors.Join(missing...)
}
