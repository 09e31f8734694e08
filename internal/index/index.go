// Package index computes per-pixel spectral scores from band math over an
// aligned raster stack.
package index

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	goeval "github.com/edisonguo/govaluate"
	"github.com/gammazero/workerpool"

	"github.com/mimosa-watch/mimosa-bloom-api-poc/internal/raster"
)

// Map holds one score per pixel for one formula. Pixels marked invalid in
// the stack's validity mask are always NaN.
type Map struct {
	Name   string
	Width  int
	Height int
	Data   []float64
}

// At returns the score at pixel (x, y).
func (m *Map) At(x, y int) float64 { return m.Data[y*m.Width+x] }

// Kind discriminates how a formula is evaluated.
type Kind int

const (
	// NormalizedDifference is (a-b)/(a+b), the NDVI family. Bounded, so
	// the result is clamped to [-1, 1].
	NormalizedDifference Kind = iota
	// Expression is an arbitrary band-math expression over channel
	// identifiers, e.g. "(B03 - 0.4*B04) / (B03 + 0.4*B04 + B08)".
	Expression
)

// Formula is one named per-pixel score definition. Formula values come from
// configuration, thresholds and coefficients are tuned per study area.
type Formula struct {
	Name string
	Kind Kind

	// A and B are the operands of a normalized difference.
	A raster.Channel
	B raster.Channel

	// Expr is the band-math source for Kind == Expression.
	Expr string
	// Clamp bounds the result when the formula's mathematical range is
	// bounded. Nil leaves the result unclamped.
	Clamp *[2]float64
}

// Channels lists the channel operands the formula reads.
func (f Formula) Channels() ([]raster.Channel, error) {
	if f.Kind == NormalizedDifference {
		return []raster.Channel{f.A, f.B}, nil
	}
	expr, err := goeval.NewEvaluableExpression(f.Expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression for formula %s: %w", f.Name, err)
	}
	seen := map[raster.Channel]bool{}
	var channels []raster.Channel
	for _, token := range expr.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		name, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("variable token %v in formula %s is not a string", token.Value, f.Name)
		}
		channel, err := raster.ParseChannel(name)
		if err != nil {
			return nil, fmt.Errorf("formula %s: %w", f.Name, err)
		}
		if !seen[channel] {
			seen[channel] = true
			channels = append(channels, channel)
		}
	}
	return channels, nil
}

// Engine evaluates configured formulas over stacks. It is stateless and safe
// for concurrent use; every pixel's output depends only on that pixel's band
// values, so tiles are processed in parallel without coordination.
type Engine struct {
	Formulas []Formula
	// Workers caps the tile pool size, defaulting to GOMAXPROCS.
	Workers int
}

// tileRows keeps per-tile work large enough that pool overhead stays noise.
const tileRows = 64

// Compute evaluates every configured formula over the stack and returns the
// maps keyed by formula name. Fails with MissingBandError before any pixel
// work when a formula operand is absent from the stack.
func (e *Engine) Compute(stack *raster.Stack) (map[string]*Map, error) {
	maps := make(map[string]*Map, len(e.Formulas))
	for _, formula := range e.Formulas {
		m, err := e.computeOne(stack, formula)
		if err != nil {
			return nil, err
		}
		maps[formula.Name] = m
	}
	return maps, nil
}

func (e *Engine) computeOne(stack *raster.Stack, formula Formula) (*Map, error) {
	channels, err := formula.Channels()
	if err != nil {
		return nil, err
	}
	operands := make(map[raster.Channel]*raster.Band, len(channels))
	for _, channel := range channels {
		band, err := stack.Band(channel)
		if err != nil {
			return nil, err
		}
		operands[channel] = band
	}

	out := &Map{
		Name:   formula.Name,
		Width:  stack.Width,
		Height: stack.Height,
		Data:   make([]float64, stack.Width*stack.Height),
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	wp := workerpool.New(workers)

	var mu sync.Mutex
	var tileErr error

	for row := 0; row < stack.Height; row += tileRows {
		rowStart := row
		rowEnd := row + tileRows
		if rowEnd > stack.Height {
			rowEnd = stack.Height
		}
		wp.Submit(func() {
			err := evalTile(formula, operands, stack.Mask(), out, rowStart, rowEnd)
			if err != nil {
				mu.Lock()
				if tileErr == nil {
					tileErr = err
				}
				mu.Unlock()
			}
		})
	}
	wp.StopWait()

	if tileErr != nil {
		return nil, tileErr
	}
	return out, nil
}

// evalTile fills rows [rowStart, rowEnd) of the output map. Each tile writes
// only its own slice of the output buffer.
func evalTile(formula Formula, operands map[raster.Channel]*raster.Band, mask *raster.Mask, out *Map, rowStart, rowEnd int) error {
	switch formula.Kind {
	case NormalizedDifference:
		evalNormalizedDifference(formula, operands, mask, out, rowStart, rowEnd)
		return nil
	case Expression:
		return evalExpression(formula, operands, mask, out, rowStart, rowEnd)
	}
	return fmt.Errorf("unknown formula kind %d for %s", formula.Kind, formula.Name)
}

func evalNormalizedDifference(formula Formula, operands map[raster.Channel]*raster.Band, mask *raster.Mask, out *Map, rowStart, rowEnd int) {
	bandA := operands[formula.A]
	bandB := operands[formula.B]
	for y := rowStart; y < rowEnd; y++ {
		for x := 0; x < out.Width; x++ {
			i := y*out.Width + x
			if !mask.Valid(x, y) {
				out.Data[i] = math.NaN()
				continue
			}
			a := bandA.Data[i]
			b := bandB.Data[i]
			sum := a + b
			if sum == 0 || math.IsNaN(sum) {
				out.Data[i] = math.NaN()
				continue
			}
			v := (a - b) / sum
			out.Data[i] = clampTo(v, formula.Clamp, -1, 1)
		}
	}
}

func evalExpression(formula Formula, operands map[raster.Channel]*raster.Band, mask *raster.Mask, out *Map, rowStart, rowEnd int) error {
	// Each tile compiles its own expression, evaluation state is not shared
	// between goroutines.
	expr, err := goeval.NewEvaluableExpression(formula.Expr)
	if err != nil {
		return fmt.Errorf("invalid expression for formula %s: %w", formula.Name, err)
	}

	params := make(map[string]interface{}, len(operands))
	for y := rowStart; y < rowEnd; y++ {
		for x := 0; x < out.Width; x++ {
			i := y*out.Width + x
			if !mask.Valid(x, y) {
				out.Data[i] = math.NaN()
				continue
			}
			nanInput := false
			for channel, band := range operands {
				v := band.Data[i]
				if math.IsNaN(v) {
					nanInput = true
					break
				}
				params[channel.String()] = v
			}
			if nanInput {
				out.Data[i] = math.NaN()
				continue
			}
			result, err := expr.Evaluate(params)
			if err != nil {
				// Division by zero and friends are numeric facts of the
				// pixel, not pipeline failures.
				out.Data[i] = math.NaN()
				continue
			}
			// The govaluate fork computes in float32.
			var v float64
			switch r := result.(type) {
			case float32:
				v = float64(r)
			case float64:
				v = r
			default:
				out.Data[i] = math.NaN()
				continue
			}
			if math.IsInf(v, 0) {
				out.Data[i] = math.NaN()
				continue
			}
			if formula.Clamp != nil {
				v = clampTo(v, formula.Clamp, 0, 0)
			}
			out.Data[i] = v
		}
	}
	return nil
}

func clampTo(v float64, clamp *[2]float64, defLo, defHi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	lo, hi := defLo, defHi
	if clamp != nil {
		lo, hi = clamp[0], clamp[1]
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
