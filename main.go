package main

import (
	"os"

	"collectibles-market/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		utils.NewLogger().Error("%v", err)
		os.Exit(1)
	}
}
