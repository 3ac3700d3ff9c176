package zia

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var processStart = time.Now()

func nativeClock() float64 {
	return time.Since(processStart).Seconds()
}

func nativeType(v Value) string {
	return v.TypeName()
}

func nativeText(v Value) string {
	return v.String()
}

func nativeNumber(v Value) (float64, error) {
	switch {
	case v.IsNumber():
		return v.AsNumber(), nil
	case v.IsBool():
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case v.IsString():
		s := strings.TrimSpace(v.AsString().Chars)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("impossible de convertir '%s' en nombre", s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("impossible de convertir une valeur de type '%s' en nombre", v.TypeName())
}

func nativeLength(s string) int {
	return utf8.RuneCountInString(s)
}

func nativeSqrt(x float64) (float64, error) {
	if x < 0 {
		return 0, fmt.Errorf("racine d'un nombre négatif")
	}
	return math.Sqrt(x), nil
}

func nativeRandom() float64 {
	return rand.Float64()
}

var Builtins = map[string]any{
	"horloge":    nativeClock,
	"type":       nativeType,
	"texte":      nativeText,
	"nombre":     nativeNumber,
	"longueur":   nativeLength,
	"racine":     nativeSqrt,
	"abs":        math.Abs,
	"plancher":   math.Floor,
	"plafond":    math.Ceil,
	"arrondi":    math.Round,
	"puissance":  math.Pow,
	"min":        math.Min,
	"max":        math.Max,
	"majuscules": strings.ToUpper,
	"minuscules": strings.ToLower,
	"aleatoire":  nativeRandom,
}

// LoadBuiltins defines every native in Builtins as a global, in name order
// so that allocation order does not depend on map iteration.
func (vm *VM) LoadBuiltins() error {
	for _, name := range slices.Sorted(maps.Keys(Builtins)) {
		if err := vm.RegisterGoFunction(name, Builtins[name], BuiltinDocs[name]); err != nil {
			return err
		}
	}
	return nil
}
