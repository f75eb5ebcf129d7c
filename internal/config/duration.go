package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseDuration accepts everything time.ParseDuration does plus day ("d")
// and week ("w") units, e.g. "7d", "1w2d", "1.5d", "-2w".
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	sign := ""
	if s[0] == '+' || s[0] == '-' {
		sign, s = s[:1], s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}

	var out strings.Builder
	out.WriteString(sign)
	for s != "" {
		numEnd := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
		if numEnd <= 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		number := s[:numEnd]
		s = s[numEnd:]

		unitEnd := strings.IndexFunc(s, func(r rune) bool { return (r >= '0' && r <= '9') || r == '.' })
		if unitEnd < 0 {
			unitEnd = len(s)
		}
		unit := s[:unitEnd]
		s = s[unitEnd:]

		var hoursPer float64
		switch unit {
		case "d":
			hoursPer = 24
		case "w":
			hoursPer = 7 * 24
		default:
			// Go validates the remaining units.
			out.WriteString(number)
			out.WriteString(unit)
			continue
		}
		n, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		out.WriteString(strconv.FormatFloat(n*hoursPer, 'f', -1, 64))
		out.WriteByte('h')
	}
	return time.ParseDuration(out.String())
}

// Duration is a YAML scalar parsed with ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
