// Command capa serves and runs robust collective and point anomaly
// detection.
package main

//	@title			capa API
//	@version		0.1.0
//	@description	Robust collective and point anomaly detection API.
//	@BasePath		/api/v1

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
