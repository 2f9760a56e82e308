package colormap

import (
	"errors"
	"reflect"
	"testing"
)

func TestSelectDiscrete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  Palette
		name  string
	}{
		{1, Tab10, "tab10"},
		{3, Tab10, "tab10"},
		{10, Tab10, "tab10"},
		{11, Tab20, "tab20"},
		{20, Tab20, "tab20"},
		{21, Tab20b, "tab20b"},
		{40, Tab20b, "tab20b"},
		{41, Tab20c, "tab20c"},
		{64, Tab20c, "tab20c"},
	}
	for _, tt := range tests {
		got, err := SelectDiscrete(tt.count)
		if err != nil {
			t.Fatalf("SelectDiscrete(%d): %v", tt.count, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SelectDiscrete(%d) picked the wrong palette", tt.count)
		}
		name, err := TierName(tt.count)
		if err != nil || name != tt.name {
			t.Errorf("TierName(%d) = %q, %v; want %q", tt.count, name, err, tt.name)
		}
	}
}

func TestSelectDiscreteOutOfRange(t *testing.T) {
	t.Parallel()

	for _, count := range []int{-1, 0, 65, 1000} {
		if _, err := SelectDiscrete(count); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("SelectDiscrete(%d): expected ErrInvalidInput, got %v", count, err)
		}
	}
	if name, err := TierName(65); err != nil || name != "viridis" {
		t.Errorf("TierName(65) = %q, %v", name, err)
	}
}

func TestSelectDiscreteReturnsCopy(t *testing.T) {
	t.Parallel()

	want := Tab10.Clone()
	got, err := SelectDiscrete(3)
	if err != nil {
		t.Fatalf("SelectDiscrete(3): %v", err)
	}
	got[0] = Color{}

	if !reflect.DeepEqual(Tab10, want) {
		t.Fatal("mutating the returned palette changed Tab10")
	}
	again, err := ForCount(3)
	if err != nil {
		t.Fatalf("ForCount(3): %v", err)
	}
	if again[0] != want[0] {
		t.Errorf("ForCount(3)[0] = %v, want %v", again[0], want[0])
	}
}

func TestDiscretePalettesAreDistinct(t *testing.T) {
	t.Parallel()

	palettes := map[string]Palette{
		"tab10":  Tab10,
		"tab20":  Tab20,
		"tab20b": Tab20b,
		"tab20c": Tab20c,
	}
	for name, p := range palettes {
		seen := make(map[Color]int, len(p))
		for i, c := range p {
			if j, dup := seen[c]; dup {
				t.Errorf("%s: color %s repeated at %d and %d", name, c, j, i)
			}
			seen[c] = i
		}
	}
	if len(Tab10) != 10 {
		t.Errorf("expected 10 colors in tab10, got %d", len(Tab10))
	}
	for _, p := range []Palette{Tab20, Tab20b, Tab20c, Categorical} {
		if len(p) != 20 {
			t.Errorf("expected 20 colors, got %d", len(p))
		}
	}
}

func TestPaletteAtIndexWraps(t *testing.T) {
	t.Parallel()

	p := Palette{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}
	for i := 0; i < 9; i++ {
		if got := p.AtIndex(i); got != p[i%3] {
			t.Errorf("AtIndex(%d) = %s, want %s", i, got, p[i%3])
		}
	}
	if got := p.AtIndex(-1); got != p[2] {
		t.Errorf("AtIndex(-1) = %s, want %s", got, p[2])
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	stops := Viridis.Stops()

	t.Run("single", func(t *testing.T) {
		got, err := Generate(1)
		if err != nil {
			t.Fatalf("Generate(1): %v", err)
		}
		if len(got) != 1 || got[0] != stops[0] {
			t.Fatalf("unexpected Generate(1): %v", got.Hex())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, n := range []int{0, -5} {
			if _, err := Generate(n); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Generate(%d): expected ErrInvalidInput, got %v", n, err)
			}
		}
	})

	t.Run("endpoints", func(t *testing.T) {
		for _, n := range []int{2, 3, 65, 70, 257} {
			got, err := Generate(n)
			if err != nil {
				t.Fatalf("Generate(%d): %v", n, err)
			}
			if len(got) != n {
				t.Fatalf("Generate(%d) returned %d colors", n, len(got))
			}
			if got[0] != stops[0] {
				t.Errorf("Generate(%d)[0] = %s, want %s", n, got[0], stops[0])
			}
			if got[n-1] != stops[len(stops)-1] {
				t.Errorf("Generate(%d)[last] = %s, want %s", n, got[n-1], stops[len(stops)-1])
			}
		}
	})

	t.Run("stopsReproduced", func(t *testing.T) {
		got, err := Generate(len(stops))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !reflect.DeepEqual(got, stops) {
			t.Fatalf("expected the reference stops, got %v", got.Hex())
		}
	})

	t.Run("midpointInterpolated", func(t *testing.T) {
		// With 19 colors every odd sample sits about halfway between two stops.
		got, err := Generate(19)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		want := Interpolate(stops[0], stops[1], float64(1)/float64(18)*9)
		if got[1] != want {
			t.Fatalf("expected %s, got %s", want, got[1])
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := Generate(100)
		b, _ := Generate(100)
		if !reflect.DeepEqual(a, b) {
			t.Fatal("Generate is not deterministic")
		}
	})
}

func TestForCount(t *testing.T) {
	t.Parallel()

	p, err := ForCount(64)
	if err != nil || !reflect.DeepEqual(p, Tab20c) {
		t.Fatalf("ForCount(64) = %v, %v", p.Hex(), err)
	}
	p, err = ForCount(65)
	if err != nil || len(p) != 65 {
		t.Fatalf("ForCount(65) = %d colors, %v", len(p), err)
	}
	if _, err := ForCount(0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ForCount(0): expected ErrInvalidInput, got %v", err)
	}
}
