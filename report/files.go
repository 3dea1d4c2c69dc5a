package report

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/backtester/backtest"
)

// ComparisonPath is <dir>/<SYMBOL>_comparison.svg.
func ComparisonPath(dir, symbol string) string {
	return filepath.Join(dir, strings.ToUpper(symbol)+"_comparison.svg")
}

// RunPath is <dir>/<SYMBOL>_<strategy slug>.svg.
func RunPath(dir string, r *backtest.Result) string {
	return filepath.Join(dir, strings.ToUpper(r.Symbol)+"_"+r.Policy.Slug()+".svg")
}

// SaveComparisonSVG renders the comparison chart and writes it under dir.
func SaveComparisonSVG(dir string, cmp *backtest.Comparison) (string, error) {
	b, err := RenderComparisonSVG(cmp.Symbol, cmp.Table, SVGOptions{})
	if err != nil {
		return "", err
	}
	path := ComparisonPath(dir, cmp.Symbol)
	return path, writeFile(path, b)
}

// SaveRunSVG renders the detailed chart of r and writes it under dir.
func SaveRunSVG(dir string, r *backtest.Result, closes []float64) (string, error) {
	b, err := RenderRunSVG(r, closes, SVGOptions{})
	if err != nil {
		return "", err
	}
	path := RunPath(dir, r)
	return path, writeFile(path, b)
}

func writeFile(path string, b []byte) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
