// Command heartrisk loads the heart-attack dataset, cleans and encodes it,
// and compares four classifiers on it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
