package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShape parses a "masters:workers" pair such as "3:2".
func ParseShape(value string) (DeployedShape, error) {
	masters, workers, ok := strings.Cut(value, ":")
	if !ok {
		return DeployedShape{}, fmt.Errorf("%q does not match the format int:int (example: 5:10)", value)
	}

	m, err := strconv.Atoi(strings.TrimSpace(masters))
	if err != nil {
		return DeployedShape{}, fmt.Errorf("%q does not match the format int:int (example: 5:10)", value)
	}
	w, err := strconv.Atoi(strings.TrimSpace(workers))
	if err != nil {
		return DeployedShape{}, fmt.Errorf("%q does not match the format int:int (example: 5:10)", value)
	}

	if m < 0 || w < 0 {
		return DeployedShape{}, fmt.Errorf("%q: node counts must not be negative", value)
	}

	return DeployedShape{Masters: m, Workers: w}, nil
}

// String renders the shape in the flag format.
func (s DeployedShape) String() string {
	return fmt.Sprintf("%d:%d", s.Masters, s.Workers)
}
