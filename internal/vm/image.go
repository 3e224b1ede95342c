package vm

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// imageVersion is the current image format version
const imageVersion byte = 0x01

// imageMagic prefixes every serialized chunk image
var imageMagic = [4]byte{'L', 'O', 'X', 'C'}

// imageHeaderSize is 4 bytes of magic plus 1 version byte
const imageHeaderSize = 5

// maxImageElements bounds the line table and constant pool arrays when
// decoding. The library default of 131072 is far below what a chunk can hold.
const maxImageElements = math.MaxInt32

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxArrayElements: maxImageElements}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// imageData is the CBOR payload of a chunk image
type imageData struct {
	ID        string    `cbor:"id"`
	Name      string    `cbor:"name"`
	Code      []byte    `cbor:"code"`
	Lines     []int     `cbor:"lines"`
	Constants []float64 `cbor:"constants"`
}

// Serialize converts a Chunk to binary image format.
// Format:
// - Magic number (4 bytes): "LOXC"
// - Version (1 byte): 0x01
// - CBOR-encoded image data
func (c *Chunk) Serialize() ([]byte, error) {
	data := imageData{
		ID:        uuid.NewString(),
		Name:      c.Name,
		Code:      c.Code,
		Lines:     c.Lines,
		Constants: make([]float64, len(c.Constants.Values)),
	}
	for i, v := range c.Constants.Values {
		data.Constants[i] = float64(v)
	}

	payload, err := cborEncMode.Marshal(&data)
	if err != nil {
		return nil, fmt.Errorf("image cbor encoding failed: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.Write(imageMagic[:])
	buf.WriteByte(imageVersion)
	buf.Write(payload)

	log.Debugf("serialized image %s (%q, %d bytes)", data.ID, c.Name, buf.Len())
	return buf.Bytes(), nil
}

// Deserialize reads image data back into a Chunk.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < imageHeaderSize {
		return nil, fmt.Errorf("image data too short")
	}

	if !bytes.Equal(data[:4], imageMagic[:]) {
		return nil, fmt.Errorf("invalid magic number, expected LOXC")
	}

	version := data[4]
	if version != imageVersion {
		return nil, fmt.Errorf(
			"unsupported image version: %d (this binary supports version %d)",
			version, imageVersion)
	}

	var img imageData
	if err := cborDecMode.Unmarshal(data[imageHeaderSize:], &img); err != nil {
		return nil, fmt.Errorf("image cbor decoding failed: %w", err)
	}
	if err := img.validate(); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}

	chunk := &Chunk{
		Name:  img.Name,
		Code:  img.Code,
		Lines: img.Lines,
		Constants: ConstantPool{
			Values: make([]Value, len(img.Constants)),
		},
	}
	if chunk.Code == nil {
		chunk.Code = []byte{}
	}
	if chunk.Lines == nil {
		chunk.Lines = []int{}
	}
	for i, v := range img.Constants {
		chunk.Constants.Values[i] = Value(v)
	}

	log.Debugf("loaded image %s (%q, %d bytes of code)", img.ID, img.Name, len(chunk.Code))
	return chunk, nil
}

// validate checks the structural integrity of a decoded image.
func (img *imageData) validate() error {
	if len(img.Lines) != len(img.Code) {
		return fmt.Errorf("line table has %d entries for %d bytes of code", len(img.Lines), len(img.Code))
	}
	if len(img.Constants) > MaxLongConstant+1 {
		return fmt.Errorf("constant pool has %d entries, limit is %d", len(img.Constants), MaxLongConstant+1)
	}
	return nil
}

// WriteImageFile serializes chunk to path.
func WriteImageFile(path string, chunk *Chunk) error {
	data, err := chunk.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing image %s: %w", path, err)
	}
	return nil
}

// ReadImageFile loads a chunk from path.
func ReadImageFile(path string) (*Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	chunk, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chunk, nil
}

// --- Helper: run a chunk on a fresh VM ---

// RunChunk creates a VM, interprets chunk and frees the VM.
// Errors are returned, not printed.
func RunChunk(chunk *Chunk, opts Options) (Value, InterpretResult, error) {
	machine := New(opts)
	machine.Init()
	defer machine.Free()

	res, err := machine.Interpret(chunk)
	if err != nil {
		return 0, res, err
	}
	v, _ := machine.Result()
	return v, res, nil
}
