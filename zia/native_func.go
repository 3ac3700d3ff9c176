package zia

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	vmType    = reflect.TypeOf((*VM)(nil))
	valueType = reflect.TypeOf(Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// CreateNativeFunction wraps a plain Go function as a NativeFn. Parameters
// may be float64, int, string, bool or Value, optionally preceded by *VM.
// Results may be one of those types, optionally followed by an error, or
// a lone error. It returns the arity to register the native with.
func CreateNativeFunction(name string, fn any) (int, NativeFn, error) {
	fnValue := reflect.ValueOf(fn)
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return 0, nil, fmt.Errorf("native %s: not a function: %T", name, fn)
	}
	fnType := fnValue.Type()
	if fnType.IsVariadic() {
		return 0, nil, fmt.Errorf("native %s: variadic functions are not supported", name)
	}

	wantsVM := fnType.NumIn() > 0 && fnType.In(0) == vmType
	argOffset := 0
	if wantsVM {
		argOffset = 1
	}

	converters := make([]func(Value) (reflect.Value, error), fnType.NumIn()-argOffset)
	for i := range converters {
		conv, err := argConverter(fnType.In(i + argOffset))
		if err != nil {
			return 0, nil, fmt.Errorf("native %s: parameter %d: %w", name, i+1, err)
		}
		converters[i] = conv
	}

	returnsValue, returnsError := false, false
	switch fnType.NumOut() {
	case 0:
	case 1:
		if fnType.Out(0) == errorType {
			returnsError = true
		} else {
			returnsValue = true
		}
	case 2:
		if fnType.Out(1) != errorType {
			return 0, nil, fmt.Errorf("native %s: second result must be an error", name)
		}
		returnsValue, returnsError = true, true
	default:
		return 0, nil, fmt.Errorf("native %s: too many results", name)
	}
	if returnsValue {
		if _, err := resultConverter(fnType.Out(0)); err != nil {
			return 0, nil, fmt.Errorf("native %s: result: %w", name, err)
		}
	}

	call := func(vm *VM, args []Value) (Value, error) {
		in := make([]reflect.Value, 0, len(args)+argOffset)
		if wantsVM {
			in = append(in, reflect.ValueOf(vm))
		}
		for i, conv := range converters {
			v, err := conv(args[i])
			if err != nil {
				return NilValue(), fmt.Errorf("%s : argument %d : %w", name, i+1, err)
			}
			in = append(in, v)
		}

		results := fnValue.Call(in)

		if returnsError {
			last := results[len(results)-1]
			if !last.IsNil() {
				return NilValue(), fmt.Errorf("%s : %w", name, last.Interface().(error))
			}
		}
		if !returnsValue {
			return NilValue(), nil
		}
		conv, _ := resultConverter(results[0].Type())
		return conv(vm, results[0]), nil
	}

	return len(converters), call, nil
}

var errWrongType = errors.New("type incorrect")

func argConverter(t reflect.Type) (func(Value) (reflect.Value, error), error) {
	if t == valueType {
		return func(v Value) (reflect.Value, error) {
			return reflect.ValueOf(v), nil
		}, nil
	}

	switch t.Kind() {
	case reflect.Float64:
		return func(v Value) (reflect.Value, error) {
			if !v.IsNumber() {
				return reflect.Value{}, fmt.Errorf("%w : nombre attendu, reçu %s", errWrongType, v.TypeName())
			}
			return reflect.ValueOf(v.AsNumber()).Convert(t), nil
		}, nil
	case reflect.Int:
		return func(v Value) (reflect.Value, error) {
			if !v.IsNumber() || !isInt(v.AsNumber()) {
				return reflect.Value{}, fmt.Errorf("%w : entier attendu, reçu %s", errWrongType, v)
			}
			return reflect.ValueOf(int(v.AsNumber())).Convert(t), nil
		}, nil
	case reflect.String:
		return func(v Value) (reflect.Value, error) {
			if !v.IsString() {
				return reflect.Value{}, fmt.Errorf("%w : chaine attendue, reçu %s", errWrongType, v.TypeName())
			}
			return reflect.ValueOf(v.AsString().Chars).Convert(t), nil
		}, nil
	case reflect.Bool:
		return func(v Value) (reflect.Value, error) {
			if !v.IsBool() {
				return reflect.Value{}, fmt.Errorf("%w : booleen attendu, reçu %s", errWrongType, v.TypeName())
			}
			return reflect.ValueOf(v.AsBool()).Convert(t), nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported Go type %s", t)
}

// isInt reports whether n converts to int without loss. 2^63 itself is
// representable as a float64 but not as an int64.
func isInt(n float64) bool {
	return math.Trunc(n) == n && n >= math.MinInt && n < math.MaxInt
}

func resultConverter(t reflect.Type) (func(*VM, reflect.Value) Value, error) {
	if t == valueType {
		return func(_ *VM, rv reflect.Value) Value {
			return rv.Interface().(Value)
		}, nil
	}

	switch t.Kind() {
	case reflect.Float64, reflect.Float32:
		return func(_ *VM, rv reflect.Value) Value {
			return NumberValue(rv.Float())
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(_ *VM, rv reflect.Value) Value {
			return NumberValue(float64(rv.Int()))
		}, nil
	case reflect.String:
		return func(vm *VM, rv reflect.Value) Value {
			return ObjValue(vm.heap.CopyString(rv.String()))
		}, nil
	case reflect.Bool:
		return func(_ *VM, rv reflect.Value) Value {
			return BoolValue(rv.Bool())
		}, nil
	}
	return nil, fmt.Errorf("unsupported Go type %s", t)
}

// RegisterGoFunction binds a Go function under name; see
// CreateNativeFunction for the accepted signatures.
func (vm *VM) RegisterGoFunction(name string, fn any, doc *NativeDoc) error {
	arity, call, err := CreateNativeFunction(name, fn)
	if err != nil {
		return err
	}
	native := vm.DefineNative(name, arity, call)
	native.Doc = doc
	return nil
}
