package vm

// Chunk represents a sequence of bytecode instructions
type Chunk struct {
	// Name labels the chunk in disassembly and logs
	Name string

	// Code is the bytecode instructions
	Code []byte

	// Lines maps bytecode offset to source line number (one entry per byte)
	Lines []int

	// Constants pool referenced by index from Code
	Constants ConstantPool
}

// NewChunk creates a new empty chunk
func NewChunk(name string) *Chunk {
	return &Chunk{
		Name:  name,
		Code:  make([]byte, 0, 256),
		Lines: make([]int, 0, 256),
		Constants: ConstantPool{
			Values: make([]Value, 0, 64),
		},
	}
}

// Write adds a byte to the chunk with line info
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp writes an opcode to the chunk
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant adds a constant to the pool and writes its 3-byte index.
// The caller writes the OP_CONST_LONG opcode itself.
func (c *Chunk) AddConstant(value Value, line int) int {
	idx := c.addToPool(value)
	for _, b := range EncodeLongIndex(idx) {
		c.Write(b, line)
	}
	return idx
}

// WriteConstant adds a constant and writes a complete load instruction,
// OP_CONST while the index fits one byte and OP_CONST_LONG after that.
func (c *Chunk) WriteConstant(value Value, line int) int {
	idx := c.addToPool(value)
	if idx <= MaxShortConstant {
		c.WriteOp(OP_CONST, line)
		c.Write(byte(idx), line)
		return idx
	}
	c.WriteOp(OP_CONST_LONG, line)
	for _, b := range EncodeLongIndex(idx) {
		c.Write(b, line)
	}
	return idx
}

func (c *Chunk) addToPool(value Value) int {
	if c.Constants.Len() > MaxLongConstant {
		panic(ErrConstantPoolFull)
	}
	return c.Constants.Add(value)
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}

// EncodeLongIndex splits a constant index into three big-endian bytes
func EncodeLongIndex(idx int) [3]byte {
	return [3]byte{
		byte((idx >> 16) & 0xFF),
		byte((idx >> 8) & 0xFF),
		byte(idx & 0xFF),
	}
}

// DecodeLongIndex joins three big-endian bytes into a constant index
func DecodeLongIndex(b [3]byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
