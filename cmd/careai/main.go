// Command careai runs the triage API locally and offers one-shot triage and
// normalization helpers.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
