package matcher

import (
	"testing"

	"bot-marketplace/internal/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		title string
		want  models.Components
	}{
		{"Sim+eSim 17 Pro Max 512GB White", models.Components{Model: "17 Pro Max", Storage: "512GB", Color: "Silver", Connectivity: models.ConnectivityDual}},
		{"eSim 17 Air 256GB Sky Blue", models.Components{Model: "17 Air", Storage: "256GB", Color: "Sky Blue", Connectivity: models.ConnectivityESIMOnly}},
		{"iPhone 17 256GB Black", models.Components{Model: "17", Storage: "256GB", Color: "Black", Connectivity: models.ConnectivityDual}},
		{"nano-SIM+eSIM 17 Pro 1TB Cosmic Orange", models.Components{Model: "17 Pro", Storage: "1TB", Color: "Cosmic Orange", Connectivity: models.ConnectivityDual}},
		{"Sim/eSim 17 Pro 256GB Blue", models.Components{Model: "17 Pro", Storage: "256GB", Color: "Blue", Connectivity: models.ConnectivityDual}},
		{"esim+esim 16 plus 128 gb pink", models.Components{Model: "16 Plus", Storage: "128GB", Color: "Pink", Connectivity: models.ConnectivityESIMOnly}},
		{"17 Pro Max 2TB Deep Blue e-sim", models.Components{Model: "17 Pro Max", Storage: "2TB", Color: "Deep Blue", Connectivity: models.ConnectivityESIMOnly}},
		{"17 Pro White", models.Components{Model: "17 Pro", Color: "Silver", Connectivity: models.ConnectivityDual}},
		{"17 White", models.Components{Model: "17", Color: "White", Connectivity: models.ConnectivityDual}},
		{"16 Pro White", models.Components{Model: "16 Pro", Color: "White", Connectivity: models.ConnectivityDual}},
		{"  17   PRO   MAX  ", models.Components{Model: "17 Pro Max", Connectivity: models.ConnectivityDual}},
		{"", models.Components{Connectivity: models.ConnectivityDual}},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Extract(tt.title)
			if got != tt.want {
				t.Errorf("Extract(%q)\n got: %+v\nwant: %+v", tt.title, got, tt.want)
			}
		})
	}
}

func TestExtractRoundTrip(t *testing.T) {
	connectivity := []struct {
		token string
		want  models.Connectivity
	}{
		{"Sim+eSim", models.ConnectivityDual},
		{"nano-SIM + eSIM", models.ConnectivityDual},
		{"eSim", models.ConnectivityESIMOnly},
		{"", models.ConnectivityDual},
	}
	modelNames := []string{"17", "17 Pro", "17 Pro Max", "16 Plus", "17 Air", "13 Mini"}
	storages := []string{"128GB", "256GB", "512GB", "1TB"}
	colors := []string{"Blue", "Deep Blue", "Cosmic Orange", "Black", "Space Black"}

	for _, conn := range connectivity {
		for _, model := range modelNames {
			for _, storage := range storages {
				for _, color := range colors {
					title := conn.token + " " + model + " " + storage + " " + color
					want := models.Components{Model: model, Storage: storage, Color: color, Connectivity: conn.want}
					if got := Extract(title); got != want {
						t.Errorf("Extract(%q) = %+v, want %+v", title, got, want)
					}
				}
			}
		}
	}
}

func TestComponentsMatch(t *testing.T) {
	full := models.Components{Model: "17 Pro", Storage: "256GB", Color: "Blue", Connectivity: models.ConnectivityDual}

	tests := []struct {
		name string
		a, b models.Components
		want bool
	}{
		{"identical", full, full, true},
		{"case insensitive", full, models.Components{Model: "17 PRO", Storage: "256gb", Color: "blue", Connectivity: "DUAL"}, true},
		{"both unspecified", models.Components{Model: "17"}, models.Components{Model: "17"}, true},
		{"unspecified vs specified", full, models.Components{Model: "17 Pro", Color: "Blue", Connectivity: models.ConnectivityDual}, false},
		{"different connectivity", full, models.Components{Model: "17 Pro", Storage: "256GB", Color: "Blue", Connectivity: models.ConnectivityESIMOnly}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComponentsMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("ComponentsMatch = %v, want %v", got, tt.want)
			}
		})
	}
}
