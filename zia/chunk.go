package zia

// MaxConstants bounds a chunk's constant pool; constant operands are one
// byte wide.
const MaxConstants = 256

// Chunk is the compiled body of one function: code bytes, the source line
// of each byte, and the constant pool.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

func (c *Chunk) Write(b byte, line int) {
	if len(c.Code) == cap(c.Code) {
		newCap := growCapacity(cap(c.Code))
		code := make([]byte, len(c.Code), newCap)
		copy(code, c.Code)
		c.Code = code
		lines := make([]int, len(c.Lines), newCap)
		copy(lines, c.Lines)
		c.Lines = lines
	}
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the pool and returns its index. The caller
// checks the index against MaxConstants.
func (c *Chunk) AddConstant(v Value) int {
	if len(c.Constants) == cap(c.Constants) {
		consts := make([]Value, len(c.Constants), growCapacity(cap(c.Constants)))
		copy(consts, c.Constants)
		c.Constants = consts
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// PatchShort overwrites the two bytes at offset with v, big-endian.
func (c *Chunk) PatchShort(offset int, v uint16) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

func (c *Chunk) ReadShort(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

func (c *Chunk) Len() int {
	return len(c.Code)
}
