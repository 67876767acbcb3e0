package main

import (
	"fmt"

	"github.com/fatih/color"
)

// Colourful name banner, printed above the root command's help.
func banner() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//         _         _
	//   __ _ | |  ___  | |__    __ _   ___   __ _  _ __
	//  / _` || | / _ \ | '_ \  / _` | / __| / _` || '__|
	// | (_| || || (_) || | | || (_| || (__ | (_| || |
	//  \__,_||_| \___/ |_| |_| \__,_| \___| \__,_||_|

	colors := []*color.Color{r, y, b, y, r, b, r, y}
	lines := [][]string{
		{"        ", " _ ", "       ", " _     ", "       ", "      ", "       ", "      "},
		{"   __ _ ", "| |", "  ___  ", "| |__  ", "  __ _ ", "  ___ ", "  __ _ ", " _ __ "},
		{"  / _` |", "| |", " / _ \\ ", "| '_ \\ ", " / _` |", " / __|", " / _` |", "| '__|"},
		{" | (_| |", "| |", "| (_) |", "| | | |", "| (_| |", "| (__ ", "| (_| |", "| |   "},
		{"  \\__,_|", "|_|", " \\___/ ", "|_| |_|", " \\__,_|", " \\___|", " \\__,_|", "|_|   "},
	}
	for _, line := range lines {
		for i, s := range line {
			colors[i].Print(s)
		}
		fmt.Println()
	}
	fmt.Println()
}
