// Package nn loads the persisted price model and exposes it behind a single
// predict contract.
package nn

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/features"
)

// ErrModelUnavailable is returned when no model has been loaded
var ErrModelUnavailable = errors.New("model unavailable")

// UnavailableError records why the adapter has no model
type UnavailableError struct {
	Path  string
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("model unavailable (%s)", e.Path)
	}
	return fmt.Sprintf("model unavailable (%s): %v", e.Path, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// Is lets errors.Is match ErrModelUnavailable
func (e *UnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// Predictor is anything that maps an input vector to a scalar
type Predictor interface {
	Predict(input []float64) (float64, error)
}

// Adapter holds the loaded model, or the reason there is none. Its state is
// fixed at construction; a failed load stays failed until restart.
type Adapter struct {
	model   Predictor
	path    string
	loadErr *UnavailableError
}

// Status describes the adapter for health and info endpoints
type Status struct {
	Available bool                   `json:"available"`
	Path      string                 `json:"path,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

// Load reads the model artifact at path. It never fails: on any error the
// adapter is returned in the unavailable state and the cause is logged once.
func Load(path string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path == "" {
		a := Unavailable(path, errors.New("no model path configured"))
		logger.Warn("Model not loaded", zap.Error(a.loadErr.Cause))
		return a
	}

	model, err := LoadLinearModel(path)
	if err != nil {
		logger.Warn("Model not loaded, predictions disabled",
			zap.String("path", path),
			zap.Error(err),
		)
		return Unavailable(path, err)
	}

	logger.Info("Model loaded", zap.String("path", path))
	return &Adapter{model: model, path: path}
}

// NewAdapter wraps an already constructed predictor
func NewAdapter(model Predictor) *Adapter {
	if model == nil {
		return Unavailable("", nil)
	}
	return &Adapter{model: model}
}

// Unavailable returns an adapter with no model
func Unavailable(path string, cause error) *Adapter {
	return &Adapter{
		path:    path,
		loadErr: &UnavailableError{Path: path, Cause: cause},
	}
}

// Available reports whether a model is loaded
func (a *Adapter) Available() bool {
	return a != nil && a.model != nil
}

// Predict runs the model on v. Callers are expected to check Available first;
// without a model it returns an error matching ErrModelUnavailable.
func (a *Adapter) Predict(v features.Vector) (float64, error) {
	if !a.Available() {
		return 0, a.Err()
	}
	return a.model.Predict(v.Slice())
}

// Err returns the load failure, or nil when a model is loaded
func (a *Adapter) Err() error {
	if a == nil {
		return &UnavailableError{}
	}
	if a.model != nil {
		return nil
	}
	if a.loadErr == nil {
		return &UnavailableError{Path: a.path}
	}
	return a.loadErr
}

// Status returns a snapshot for reporting
func (a *Adapter) Status() Status {
	if a == nil {
		return Status{Error: ErrModelUnavailable.Error()}
	}

	s := Status{
		Available: a.Available(),
		Path:      a.path,
	}
	if err := a.Err(); err != nil {
		s.Error = err.Error()
	}
	if c, ok := a.model.(interface{ GetConfig() map[string]interface{} }); ok {
		s.Config = c.GetConfig()
	}
	return s
}
