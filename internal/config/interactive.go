package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Prompt fills in the interactive configuration sequence when no input
// directory was given on the command line. The input directory is
// re-prompted until it names an existing directory; the style prompts keep
// their defaults on empty or non-numeric input.
func Prompt(cfg *Config, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)

	fmt.Fprintln(out, "Photo watermark tool")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	for {
		fmt.Fprint(out, "Input directory: ")
		line, err := readLine(sc)
		if err != nil {
			return err
		}
		dir := strings.TrimSpace(line)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			cfg.InputDir = dir
			break
		}
		fmt.Fprintln(out, "Directory does not exist, try again.")
	}

	fmt.Fprintf(out, "Font size (default %d): ", DefaultFontSize)
	line, err := readLine(sc)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(line); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			cfg.FontSize = n
		}
	}

	fmt.Fprintf(out, "Color (default %s): ", DefaultColor)
	line, err = readLine(sc)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(line); v != "" {
		cfg.Color = v
	}

	fmt.Fprintf(out, "Position (default %s): ", DefaultPosition)
	line, err = readLine(sc)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(line); v != "" {
		cfg.Position = v
	}

	fmt.Fprintf(out, "Opacity (default %g): ", DefaultOpacity)
	line, err = readLine(sc)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(line); v != "" {
		if f, convErr := strconv.ParseFloat(v, 64); convErr == nil {
			cfg.Opacity = f
		}
	}

	return nil
}

func readLine(sc *bufio.Scanner) (string, error) {
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
