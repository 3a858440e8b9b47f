package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"wsjtxassist/logparse"
)

func main() {
	quiet := flag.Bool("q", false, "only print lines that classify as a change or report")
	flag.Parse()

	if !*quiet {
		fmt.Println("enter ALL.TXT lines (Ctrl+D to quit)")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		line, err := logparse.Classify(text)
		if err != nil {
			fmt.Printf("error   %v\n", err)
			continue
		}
		switch line.Kind {
		case logparse.LineDateBandChange:
			ch := line.Change
			bandText := ch.Band.String()
			if !ch.BandKnown {
				bandText = "unmapped"
			}
			fmt.Printf("change  date=%s freq=%s band=%s\n", ch.Date.Format("2006-01-02"), ch.Frequency, bandText)
		case logparse.LineReport:
			r := line.Report
			fmt.Printf("report  %02d%02d %s call=%s dx=%s grid=%s power=%d offset=%d\n",
				r.Hour, r.Minute, r.Mode, r.Callsign, r.DXCallsign, r.Grid, r.Power, r.Offset)
		default:
			if !*quiet {
				fmt.Println("other")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "input error: %v\n", err)
		os.Exit(1)
	}
}
