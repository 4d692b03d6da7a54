// Package main is the entry point for realtyd.
//
// @title           Realty API
// @version         1.0
// @description     Listings, deal closing with commissions, favorites, price-drop alerts and notifications.
// @BasePath        /api/v1
// @schemes         http https
package main

import (
	"fmt"
	"os"

	"github.com/tbourn/go-realty-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
