// Package main is the entry point for the roll sync daemon
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rollsync",
	Short: "Remote tabletop roll synchronization",
	Long:  `rollsync bridges a remote tabletop platform's game log feed into the local roll pipeline: remote dice land locally with their exact values, initiative and hit points follow along.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
