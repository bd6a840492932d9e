// Command compare checks two anomaly outputs against relative and absolute
// tolerances. CSV tables are compared column by column; NetCDF grids are
// compared on one variable.
//
// Exit status is 0 when the files are similar, 22 when an input cannot be
// read or the files do not line up, and 99 when a tolerance is exceeded.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/storage-anomaly/internal/adapter/store/csv"
	"go.ngs.io/storage-anomaly/internal/adapter/store/gridded"
	"go.ngs.io/storage-anomaly/internal/config"
	"go.ngs.io/storage-anomaly/internal/domain"
)

const (
	exitInput     = 22
	exitTolerance = 99
)

func fetch(url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("HTTP %d (failed to read body: %v)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// loadTable loads a CSV table from a file or URL.
func loadTable(path string) (*csv.Table, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		data, err := fetch(path)
		if err != nil {
			return nil, err
		}
		return csv.ReadTable(bytes.NewReader(data))
	}
	return csv.LoadTable(path)
}

func parseTolerance(args []string, i int) (float64, error) {
	if len(args) <= i {
		return 0, nil
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid tolerance %q", args[i])
	}
	return v, nil
}

func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

func main() {
	variable := flag.String("var", config.DefaultGRACEVariable, "Variable compared in NetCDF files")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 || len(args) > 4 {
		fmt.Fprintln(os.Stderr, "Usage: compare [-var lwe_thickness] <file1> <file2> [rtol [atol]]")
		os.Exit(2)
	}
	rtol, err := parseTolerance(args, 2)
	if err != nil {
		fail(exitInput, "%v", err)
	}
	atol, err := parseTolerance(args, 3)
	if err != nil {
		fail(exitInput, "%v", err)
	}

	fmt.Println("Comparing files")
	fmt.Printf("1st file                      : %s\n", args[0])
	fmt.Printf("2nd file                      : %s\n", args[1])
	fmt.Printf("Relative tolerance            : %g\n", rtol)
	fmt.Printf("Absolute tolerance            : %g\n", atol)
	fmt.Println("-------------------------------")

	var diff domain.Difference
	if strings.EqualFold(filepath.Ext(args[0]), ".nc") {
		a, err := gridded.ReadDataset(args[0], "first", []string{*variable}, gridded.DefaultConfig())
		if err != nil {
			fail(exitInput, "Unable to open %s: %v", args[0], err)
		}
		b, err := gridded.ReadDataset(args[1], "second", []string{*variable}, gridded.DefaultConfig())
		if err != nil {
			fail(exitInput, "Unable to open %s: %v", args[1], err)
		}
		c, err := gridded.Compare(a, b, *variable)
		if err != nil {
			fail(exitInput, "ERROR - %v", err)
		}
		fmt.Printf("Time steps                    : %d\n", c.Steps)
		fmt.Printf("Grid cells                    : %d\n", c.Cells)
		diff = c.Difference
	} else {
		a, err := loadTable(args[0])
		if err != nil {
			fail(exitInput, "Unable to open %s: %v", args[0], err)
		}
		b, err := loadTable(args[1])
		if err != nil {
			fail(exitInput, "Unable to open %s: %v", args[1], err)
		}
		c, err := csv.Compare(a, b)
		if err != nil {
			fail(exitInput, "ERROR - %v", err)
		}
		fmt.Printf("Rows                          : %d\n", c.Rows)
		fmt.Printf("Columns                       : %d\n", c.Columns)
		diff = c.Difference
	}

	fmt.Printf("Max relative difference       : %.2e\n", diff.MaxRel)
	fmt.Printf("Max absolute difference       : %.2e\n", diff.MaxAbs)
	fmt.Println("-------------------------------")

	if diff.MaxRel > rtol {
		fail(exitTolerance, "Unacceptable rel. difference!!!")
	}
	if diff.MaxAbs > atol {
		fail(exitTolerance, "Unacceptable abs. difference!!!")
	}
	fmt.Println("Files similar!!!")
}
