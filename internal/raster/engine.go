package raster

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/itss-sierra/islas-calor/output"
	"github.com/sirupsen/logrus"
)

// Engine evaluates expression graphs against an in-memory Catalog.
type Engine struct {
	catalog   *Catalog
	layersDir string
	layersURL string
	log       logrus.FieldLogger
	metrics   *metrics.Collector
}

type Option func(*Engine)

// WithLayers sets where Tiles writes PNG layers and the URL prefix they are
// served under.
func WithLayers(dir, urlPrefix string) Option {
	return func(e *Engine) {
		e.layersDir = dir
		e.layersURL = urlPrefix
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(catalog *Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		layersDir: os.TempDir(),
		layersURL: "/layers",
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "local" }

func (e *Engine) Compute(ctx context.Context, c earthengine.Computable, out any) (err error) {
	start := time.Now()
	defer func() { e.metrics.RecordEvaluation(e.Name(), "compute", err, time.Since(start)) }()

	v, err := e.eval(ctx, env{}, c.Expr())
	if err != nil {
		return err
	}
	result, err := toJSON(v)
	if err != nil {
		return err
	}
	e.log.WithField("duration", time.Since(start).String()).Debug("local compute")

	if out == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode compute result: %w", err)
	}
	return nil
}

// Tiles renders the image to a PNG file and returns its URL.
func (e *Engine) Tiles(ctx context.Context, img earthengine.Image, vis earthengine.VisParams) (url string, err error) {
	start := time.Now()
	defer func() { e.metrics.RecordEvaluation(e.Name(), "tiles", err, time.Since(start)) }()

	v, err := e.eval(ctx, env{}, img.Expr())
	if err != nil {
		return "", err
	}
	image, ok := v.(*Image)
	if !ok {
		return "", fmt.Errorf("tiles need an image, got %s", kindOf(v))
	}
	if len(image.Bands) == 0 {
		return "", fmt.Errorf("image has no bands")
	}
	band := image.Bands[0]
	if len(vis.Bands) > 0 {
		b, ok := image.Band(vis.Bands[0])
		if !ok {
			return "", fmt.Errorf("band %s not found", vis.Bands[0])
		}
		band = b
	}

	name, err := layerName(img, vis)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.layersDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create layers directory: %w", err)
	}
	layer := output.Layer{
		Width:   image.Grid.Width,
		Height:  image.Grid.Height,
		Values:  band.Data,
		Valid:   band.Valid,
		Min:     vis.Min,
		Max:     vis.Max,
		Palette: vis.Palette,
	}
	if err := output.RenderLayer(layer, filepath.Join(e.layersDir, name)); err != nil {
		return "", err
	}
	return e.layersURL + "/" + name, nil
}

func layerName(img earthengine.Image, vis earthengine.VisParams) (string, error) {
	expr, err := earthengine.Encode(img.Expr())
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(struct {
		Expr earthengine.Expression
		Vis  earthengine.VisParams
	}{expr, vis})
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]) + ".png", nil
}

// EvalError names the algorithm that failed.
type EvalError struct {
	Function string
	Err      error
}

func (e *EvalError) Error() string { return e.Function + ": " + e.Err.Error() }
func (e *EvalError) Unwrap() error { return e.Err }

type env map[string]any

type closure struct {
	def earthengine.FunctionDef
	env env
}

func (e *Engine) eval(ctx context.Context, scope env, n earthengine.Node) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case nil:
		return nil, nil
	case earthengine.Constant:
		return normalize(v.Value), nil
	case earthengine.ArgumentRef:
		val, ok := scope[v.Name]
		if !ok {
			return nil, fmt.Errorf("unbound argument %s", v.Name)
		}
		return val, nil
	case earthengine.Array:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			val, err := e.eval(ctx, scope, item)
			if err != nil {
				return nil, err
			}
			items[i] = val
		}
		return items, nil
	case earthengine.Dict:
		items := make(map[string]any, len(v.Items))
		for k, item := range v.Items {
			val, err := e.eval(ctx, scope, item)
			if err != nil {
				return nil, err
			}
			items[k] = val
		}
		return items, nil
	case earthengine.FunctionDef:
		return closure{def: v, env: scope}, nil
	case earthengine.Invocation:
		a := make(args, len(v.Arguments))
		for k, arg := range v.Arguments {
			val, err := e.eval(ctx, scope, arg)
			if err != nil {
				return nil, err
			}
			a[k] = val
		}
		out, err := e.invoke(ctx, v.Function, a)
		if err != nil {
			var evalErr *EvalError
			if errors.As(err, &evalErr) {
				return nil, err
			}
			return nil, &EvalError{Function: v.Function, Err: err}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
}

func (e *Engine) apply(ctx context.Context, c closure, arg any) (any, error) {
	if len(c.def.ArgumentNames) != 1 {
		return nil, fmt.Errorf("expected a one-argument function, got %d", len(c.def.ArgumentNames))
	}
	scope := make(env, len(c.env)+1)
	for k, v := range c.env {
		scope[k] = v
	}
	scope[c.def.ArgumentNames[0]] = arg
	return e.eval(ctx, scope, c.def.Body)
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
