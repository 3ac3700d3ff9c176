package zia

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	ImageMagic    = "ZIAC"
	ImageVersion  = 1
	ImageExt      = ".ziac"
	maxImageDepth = 256
)

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("zia: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

var ErrNotImage = errors.New("not a zia bytecode image")

type imageFile struct {
	Magic   string         `cbor:"1,keyasint"`
	Version int            `cbor:"2,keyasint"`
	Main    *imageFunction `cbor:"3,keyasint"`
}

type imageFunction struct {
	Name         string          `cbor:"1,keyasint,omitempty"`
	Arity        int             `cbor:"2,keyasint"`
	UpvalueCount int             `cbor:"3,keyasint"`
	Code         []byte          `cbor:"4,keyasint"`
	Lines        []int           `cbor:"5,keyasint"`
	Constants    []imageConstant `cbor:"6,keyasint"`
}

type constantKind uint8

const (
	constNil constantKind = iota
	constBool
	constNumber
	constString
	constFunction
)

type imageConstant struct {
	Kind constantKind   `cbor:"1,keyasint"`
	Bool bool           `cbor:"2,keyasint,omitempty"`
	Num  float64        `cbor:"3,keyasint,omitempty"`
	Str  string         `cbor:"4,keyasint,omitempty"`
	Fn   *imageFunction `cbor:"5,keyasint,omitempty"`
}

// EncodeFunction serializes a compiled top-level function and everything
// nested in its constant pool.
func EncodeFunction(fn *FunctionObj) ([]byte, error) {
	main, err := encodeFunction(fn)
	if err != nil {
		return nil, err
	}
	return imageEncMode.Marshal(&imageFile{Magic: ImageMagic, Version: ImageVersion, Main: main})
}

func encodeFunction(fn *FunctionObj) (*imageFunction, error) {
	out := &imageFunction{
		Arity:        fn.Arity,
		UpvalueCount: fn.UpvalueCount,
		Code:         fn.Chunk.Code,
		Lines:        fn.Chunk.Lines,
		Constants:    make([]imageConstant, len(fn.Chunk.Constants)),
	}
	if fn.Name != nil {
		out.Name = fn.Name.Chars
	}
	for i, k := range fn.Chunk.Constants {
		switch {
		case k.IsNil():
			out.Constants[i] = imageConstant{Kind: constNil}
		case k.IsBool():
			out.Constants[i] = imageConstant{Kind: constBool, Bool: k.AsBool()}
		case k.IsNumber():
			out.Constants[i] = imageConstant{Kind: constNumber, Num: k.AsNumber()}
		case k.IsString():
			out.Constants[i] = imageConstant{Kind: constString, Str: k.AsString().Chars}
		case k.IsFunction():
			nested, err := encodeFunction(k.AsFunction())
			if err != nil {
				return nil, err
			}
			out.Constants[i] = imageConstant{Kind: constFunction, Fn: nested}
		default:
			return nil, fmt.Errorf("%s: constant %d of type %s cannot be stored", fn.DisplayName(), i, k.TypeName())
		}
	}
	return out, nil
}

// DecodeFunction rebuilds an image on heap and verifies the result before
// returning it. Strings are interned like compiler output.
func DecodeFunction(heap *Heap, data []byte) (*FunctionObj, error) {
	var img imageFile
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if img.Magic != ImageMagic {
		return nil, ErrNotImage
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("unsupported image version %d, expected %d", img.Version, ImageVersion)
	}
	if img.Main == nil {
		return nil, fmt.Errorf("image has no main function")
	}
	if img.Main.Name != "" || img.Main.Arity != 0 || img.Main.UpvalueCount != 0 {
		return nil, fmt.Errorf("image main function must be the top-level script")
	}

	fn, err := decodeFunction(heap, img.Main, 0)
	if err != nil {
		return nil, err
	}
	if err := VerifyFunction(fn); err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}
	return fn, nil
}

func decodeFunction(heap *Heap, in *imageFunction, depth int) (*FunctionObj, error) {
	if depth > maxImageDepth {
		return nil, fmt.Errorf("functions nested deeper than %d", maxImageDepth)
	}
	if len(in.Constants) > MaxConstants {
		return nil, fmt.Errorf("%d constants exceed the limit of %d", len(in.Constants), MaxConstants)
	}
	if in.Arity < 0 || in.Arity > MaxParams || in.UpvalueCount < 0 || in.UpvalueCount > MaxUpvalues {
		return nil, fmt.Errorf("function header out of range")
	}

	fn := heap.NewFunction()
	heap.pushTemp(ObjValue(fn))
	defer heap.popTemp()

	fn.Arity = in.Arity
	fn.UpvalueCount = in.UpvalueCount
	if in.Name != "" {
		fn.Name = heap.CopyString(in.Name)
	}
	fn.Chunk.Code = append([]byte(nil), in.Code...)
	fn.Chunk.Lines = append([]int(nil), in.Lines...)

	for i, k := range in.Constants {
		switch k.Kind {
		case constNil:
			fn.Chunk.AddConstant(NilValue())
		case constBool:
			fn.Chunk.AddConstant(BoolValue(k.Bool))
		case constNumber:
			fn.Chunk.AddConstant(NumberValue(k.Num))
		case constString:
			fn.Chunk.AddConstant(ObjValue(heap.CopyString(k.Str)))
		case constFunction:
			if k.Fn == nil {
				return nil, fmt.Errorf("constant %d: missing function body", i)
			}
			nested, err := decodeFunction(heap, k.Fn, depth+1)
			if err != nil {
				return nil, err
			}
			fn.Chunk.AddConstant(ObjValue(nested))
		default:
			return nil, fmt.Errorf("constant %d: unknown kind %d", i, k.Kind)
		}
	}
	heap.recharge(fn)
	return fn, nil
}
