package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/panels"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorReset  = "\033[0m"
)

var (
	in  = bufio.NewReader(os.Stdin)
	out io.Writer = os.Stdout
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	fmt.Fprintf(out, "%s\nAviso:%s\n", ColorYellow, ColorReset)
	fmt.Fprintf(out, "%s%s%s\n", ColorYellow, message, ColorReset)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	fmt.Fprintf(out, "\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	fmt.Fprintf(out, "\n%s%s%s\n", ColorGreen, message, ColorReset)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	fmt.Fprintf(out, "%s%s%s", ColorBlue, message, ColorReset)
}

// PrintMessages shows a panel's status messages with their colour.
func PrintMessages(msgs panels.Messages) {
	for _, m := range msgs {
		switch m.Level {
		case panels.LevelSuccess:
			PrintSuccess(m.Text)
		case panels.LevelWarning, panels.LevelToast:
			PrintWarning(m.Text)
		case panels.LevelError:
			PrintError(m.Text)
		default:
			PrintInfo(m.Text + "\n")
		}
	}
}

// ReadString reads a line from stdin with trimming. io.EOF is returned once
// the input is exhausted.
func ReadString(prompt string) (string, error) {
	PrintInfo(prompt)
	input, err := in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadInt reads an integer from stdin with validation
func ReadInt(prompt string, min, max int) (int, error) {
	input, err := ReadString(prompt)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("número inválido: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("el valor debe estar entre %d y %d", min, max)
	}
	return value, nil
}

func ReadFloat(prompt string) (float64, error) {
	input, err := ReadString(prompt)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("número inválido: %s", input)
	}
	return value, nil
}

// ReadDate reads a YYYY-MM-DD date; "hoy" is today.
func ReadDate(prompt string) (time.Time, error) {
	input, err := ReadString(prompt)
	if err != nil {
		return time.Time{}, err
	}
	if input == "hoy" {
		y, m, d := time.Now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return analysis.ParseDate(input)
}

func ReadYesNo(prompt string) bool {
	input, err := ReadString(prompt + " (s/n): ")
	if err != nil {
		return false
	}
	input = strings.ToLower(input)
	return input == "s" || input == "si" || input == "sí"
}

// SelectLocality lists the localities and returns the chosen one.
func SelectLocality(prompt string) (string, error) {
	fmt.Fprintf(out, "%s\nLocalidades disponibles:%s\n", ColorGreen, ColorReset)
	for i, name := range analysis.Localities {
		fmt.Fprintf(out, "%s%d. %s%s\n", ColorGreen, i+1, name, ColorReset)
	}
	choice, err := ReadInt(prompt, 1, len(analysis.Localities))
	if err != nil {
		return "", err
	}
	return analysis.Localities[choice-1], nil
}

// ParseSelection turns "4,16" into locality names.
func ParseSelection(input string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 1 || i > len(analysis.Localities) {
			return nil, fmt.Errorf("selección inválida: %s", part)
		}
		names = append(names, analysis.Localities[i-1])
	}
	return names, nil
}

// ReadDateRange reads start and end dates and validates them against today.
func ReadDateRange(current analysis.DateRange) (analysis.DateRange, error) {
	start, err := ReadDate(fmt.Sprintf("Fecha inicial (YYYY-MM-DD, actual %s): ", current.Start.Format("2006-01-02")))
	if err != nil {
		return current, err
	}
	end, err := ReadDate(fmt.Sprintf("Fecha final (YYYY-MM-DD, actual %s): ", current.End.Format("2006-01-02")))
	if err != nil {
		return current, err
	}
	return analysis.DateRange{Start: start, End: end}, nil
}
