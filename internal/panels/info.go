package panels

import "time"

type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type InfoView struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Authors      []Person `json:"authors"`
	Institutions []string `json:"institutions"`
}

var info = InfoView{
	Title: "Islas de Calor Urbano en Tabasco",
	Description: "Este tablero analiza las Islas de Calor Urbano (ICU) en Teapa, Tabasco y el resto " +
		"de las localidades urbanas del estado a partir de la temperatura de superficie (LST) " +
		"derivada de imágenes Landsat 8. Las zonas críticas corresponden al percentil 90 de la " +
		"temperatura y los refugios verdes al percentil 95 del NDVI.",
	Authors: []Person{
		{Name: "Adrian Lara Vázquez", Role: "Residente"},
		{Name: "Ing. Daniel Perez Flores", Role: "Colaborador"},
		{Name: "M.I José de Jesús Lenin Valencia Cruz", Role: "Asesor Interno"},
		{Name: "Mtro. Candelario Peralta Carreta", Role: "Asesor Externo"},
	},
	Institutions: []string{
		"Instituto Tecnológico Superior de la Región Sierra (ITSS)",
		"Centro de Cambio Global y la Sustentabilidad (CCGSS)",
	},
}

// Info needs no backend.
func (d *Dashboard) Info() InfoView {
	d.record(PanelInfo, time.Now(), nil, nil)
	return info
}
