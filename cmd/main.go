package main

import (
	"fmt"
	"os"

	"fsbrepack/cmd/cmd"
	"fsbrepack/internal/env"
)

func main() {
	PrintLogo()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func PrintLogo() {
	fmt.Println("  __     _                                 _")
	fmt.Println(" / _|___| |__  _ __ ___ _ __   __ _  ___| | __")
	fmt.Println("| |_/ __| '_ \\| '__/ _ \\ '_ \\ / _` |/ __| |/ /")
	fmt.Println("|  _\\__ \\ |_) | | |  __/ |_) | (_| | (__|   <")
	fmt.Println("|_| |___/_.__/|_|  \\___| .__/ \\__,_|\\___|_|\\_\\")
	fmt.Println("                       |_|")
	fmt.Println()
	fmt.Println("Sound bank inspection and repacking tool")
	fmt.Println()
	fmt.Printf("Version:    %s\n", env.Version)
	fmt.Printf("Commit:     %s\n", env.CommitHash)
	fmt.Printf("Build Time: %s\n", env.BuildTime)
	fmt.Println()
}
