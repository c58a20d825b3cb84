// Build-time tool that downloads the built-in title embedding model into
// infrastructure/provider/models/ so it can be compiled in with -tags embed_model.
//
// Usage: go run ./tools/download-model [dest]
package main

import (
	"fmt"
	"os"

	"github.com/AntanasZilinskas/fd2p/infrastructure/provider"
)

func main() {
	dest := "infrastructure/provider/models"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	fmt.Printf("Downloading %s to %s...\n", provider.LocalModelRepository, dest)

	modelPath, err := provider.DownloadModel(dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model ready at %s\n", modelPath)
}
