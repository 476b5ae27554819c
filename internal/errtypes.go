package internal

import "fmt"

func errBadExponent(e int) error {
	return fmt.Errorf("exponent out of range for invPow2: %d", e)
}
