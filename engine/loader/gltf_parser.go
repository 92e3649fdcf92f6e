package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidGLTFVersion = errors.New("loader: invalid glTF version: must be 2.x")
	ErrInvalidGLB         = errors.New("loader: invalid GLB container")
	ErrBufferSizeMismatch = errors.New("loader: buffer shorter than declared")
	ErrInvalidAccessor    = errors.New("loader: invalid accessor")
)

// gltfParser decodes a glTF or GLB document and reads typed accessor data.
type gltfParser struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// parseFile loads a .gltf or .glb file. GLB is detected by extension or magic number.
func (p *gltfParser) parseFile(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".glb") || isGLB(data) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

// parseReader decodes a document from r. External buffer URIs resolve against baseDir.
func (p *gltfParser) parseReader(r io.Reader, baseDir string) error {
	p.baseDir = baseDir
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("loader: read: %w", err)
	}
	if isGLB(data) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func isGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic
}

func (p *gltfParser) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("loader: decode glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return ErrInvalidGLTFVersion
	}
	if err := p.loadBuffers(&doc); err != nil {
		return err
	}
	p.document = &doc
	return nil
}

// parseGLB splits a GLB container into its JSON and BIN chunks.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParser) parseGLB(data []byte) error {
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: header: %w", ErrInvalidGLB, err)
	}
	if header.Magic != gltfGLBMagic || header.Version != gltfGLBVersion {
		return fmt.Errorf("%w: magic %#x version %d", ErrInvalidGLB, header.Magic, header.Version)
	}

	var jsonData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: chunk header: %w", ErrInvalidGLB, err)
		}
		body := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("%w: chunk body: %w", ErrInvalidGLB, err)
		}
		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = body
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = body
		}
	}
	if jsonData == nil {
		return fmt.Errorf("%w: missing JSON chunk", ErrInvalidGLB)
	}
	return p.parseGLTF(jsonData)
}

// loadBuffers resolves every buffer from the GLB chunk, a data URI or a file.
func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
			buf.Data = p.glbBinaryChunk
		case buf.URI == "":
			return fmt.Errorf("loader: buffer %d has no URI and no GLB binary chunk", i)
		case strings.HasPrefix(buf.URI, "data:"):
			data, err := decodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("loader: buffer %d: %w", i, err)
			}
			buf.Data = data
		default:
			data, err := os.ReadFile(filepath.Join(p.baseDir, buf.URI))
			if err != nil {
				return fmt.Errorf("loader: buffer %d: %w", i, err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, ErrBufferSizeMismatch)
		}
	}
	return nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding %q", header)
	}
	return base64.StdEncoding.DecodeString(payload)
}

// accessorBytes returns an accessor's elements tightly packed, honouring the view's stride.
func (p *gltfParser) accessorBytes(index int) (*gltfAccessor, []byte, error) {
	doc := p.document
	if index < 0 || index >= len(doc.Accessors) {
		return nil, nil, fmt.Errorf("%w: index %d out of range", ErrInvalidAccessor, index)
	}
	acc := &doc.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("%w: %d is sparse", ErrInvalidAccessor, index)
	}
	elementSize := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elementSize == 0 {
		return nil, nil, fmt.Errorf("%w: %d has type %s/%d", ErrInvalidAccessor, index, acc.Type, acc.ComponentType)
	}
	out := make([]byte, acc.Count*elementSize)
	if acc.BufferView == nil {
		// Accessors without a view read as zeros.
		return acc, out, nil
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return nil, nil, fmt.Errorf("%w: %d references missing view", ErrInvalidAccessor, index)
	}
	bv := &doc.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, nil, fmt.Errorf("%w: view references missing buffer", ErrInvalidAccessor)
	}
	data := doc.Buffers[bv.Buffer].Data

	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	base := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && base+(acc.Count-1)*stride+elementSize > len(data) {
		return nil, nil, fmt.Errorf("%w: %d overruns its buffer", ErrInvalidAccessor, index)
	}
	for i := 0; i < acc.Count; i++ {
		src := base + i*stride
		copy(out[i*elementSize:(i+1)*elementSize], data[src:src+elementSize])
	}
	return acc, out, nil
}

// readFloats reads a float accessor of the given type as flat components.
// Normalized integer components are converted to [0, 1].
func (p *gltfParser) readFloats(index int, accessorType string) ([]float32, error) {
	acc, data, err := p.accessorBytes(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != accessorType {
		return nil, fmt.Errorf("%w: %d is %s, want %s", ErrInvalidAccessor, index, acc.Type, accessorType)
	}
	flat := make([]float32, acc.Count*componentCount(accessorType))
	switch acc.ComponentType {
	case gltfComponentTypeFloat:
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, flat); err != nil {
			return nil, err
		}
	case gltfComponentTypeUnsignedByte:
		for i := range flat {
			flat[i] = float32(data[i]) / 255
		}
	case gltfComponentTypeUnsignedShort:
		for i := range flat {
			flat[i] = float32(binary.LittleEndian.Uint16(data[i*2:])) / 65535
		}
	default:
		return nil, fmt.Errorf("%w: %d has component type %d", ErrInvalidAccessor, index, acc.ComponentType)
	}
	return flat, nil
}

func (p *gltfParser) readVec2(index int) ([]mgl32.Vec2, error) {
	flat, err := p.readFloats(index, gltfAccessorTypeVec2)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, len(flat)/2)
	for i := range out {
		out[i] = mgl32.Vec2{flat[i*2], flat[i*2+1]}
	}
	return out, nil
}

func (p *gltfParser) readVec3(index int) ([]mgl32.Vec3, error) {
	flat, err := p.readFloats(index, gltfAccessorTypeVec3)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, len(flat)/3)
	for i := range out {
		out[i] = mgl32.Vec3{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out, nil
}

func (p *gltfParser) readVec4(index int) ([]mgl32.Vec4, error) {
	flat, err := p.readFloats(index, gltfAccessorTypeVec4)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec4, len(flat)/4)
	for i := range out {
		out[i] = mgl32.Vec4{flat[i*4], flat[i*4+1], flat[i*4+2], flat[i*4+3]}
	}
	return out, nil
}

func (p *gltfParser) readMat4(index int) ([]mgl32.Mat4, error) {
	flat, err := p.readFloats(index, gltfAccessorTypeMat4)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Mat4, len(flat)/16)
	for i := range out {
		copy(out[i][:], flat[i*16:(i+1)*16])
	}
	return out, nil
}

// readUints reads an unsigned integer accessor (indices or joints) as uint32 components.
func (p *gltfParser) readUints(index int, accessorType string) ([]uint32, error) {
	acc, data, err := p.accessorBytes(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != accessorType {
		return nil, fmt.Errorf("%w: %d is %s, want %s", ErrInvalidAccessor, index, acc.Type, accessorType)
	}
	out := make([]uint32, acc.Count*componentCount(accessorType))
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("%w: %d has component type %d", ErrInvalidAccessor, index, acc.ComponentType)
	}
	return out, nil
}

func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	}
	return 0
}

func componentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	}
	return 0
}
