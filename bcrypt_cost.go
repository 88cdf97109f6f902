//go:build !race

package sts

func passwordHashCost() int {
	return 12
}
