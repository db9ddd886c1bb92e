package analysis

import "errors"

// User-facing conditions. The messages are shown verbatim by the surfaces.
var (
	ErrBackendUnavailable  = errors.New("No hay conexión con Google Earth Engine.")
	ErrLocalityNotFound    = errors.New("Localidad no encontrada.")
	ErrNoCleanImagery      = errors.New("Sin imágenes limpias en este periodo.")
	ErrComparisonSelection = errors.New("Selecciona exactamente 2 ciudades.")
	ErrInvalidSession      = errors.New("invalid session")
)
