package mesh

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
)

// GLB container constants (glTF 2.0 binary).
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	chunkJSON    = 0x4E4F534A // "JSON"
	chunkBIN     = 0x004E4942 // "BIN\0"
	compTypeU32  = 5125
	compTypeF32  = 5126
	targetArray  = 34962
	targetElem   = 34963
	modeTriangle = 4
)

// EncodeCompact loads a mesh and encodes it as a single-primitive GLB
// suitable for in-browser loading. Positions are float32, indices uint32.
func EncodeCompact(path string) ([]byte, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	return EncodeGLB(p)
}

// EncodeGLB serializes p into GLB bytes.
func EncodeGLB(p *PolyData) ([]byte, error) {
	var bin bytes.Buffer
	for i := 0; i < p.VertexCount(); i++ {
		x, y, z := p.Vertex(i)
		var b [12]byte
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(x)))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(y)))
		binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(z)))
		bin.Write(b[:])
	}
	posLen := bin.Len()
	for bin.Len()%4 != 0 {
		bin.WriteByte(0)
	}
	idxOffset := bin.Len()
	for _, idx := range p.Faces {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], idx)
		bin.Write(b[:])
	}
	for bin.Len()%4 != 0 {
		bin.WriteByte(0)
	}

	bmin, bmax := p.Bounds()
	doc := map[string]interface{}{
		"asset":  map[string]string{"version": "2.0", "generator": "htmlviewer-engine"},
		"scene":  0,
		"scenes": []map[string]interface{}{{"nodes": []int{0}}},
		"nodes":  []map[string]interface{}{{"mesh": 0}},
		"meshes": []map[string]interface{}{{
			"primitives": []map[string]interface{}{{
				"attributes": map[string]int{"POSITION": 0},
				"indices":    1,
				"mode":       modeTriangle,
			}},
		}},
		"buffers": []map[string]interface{}{{"byteLength": bin.Len()}},
		"bufferViews": []map[string]interface{}{
			{"buffer": 0, "byteOffset": 0, "byteLength": posLen, "target": targetArray},
			{"buffer": 0, "byteOffset": idxOffset, "byteLength": len(p.Faces) * 4, "target": targetElem},
		},
		"accessors": []map[string]interface{}{
			{
				"bufferView":    0,
				"componentType": compTypeF32,
				"count":         p.VertexCount(),
				"type":          "VEC3",
				"min":           []float32{float32(bmin[0]), float32(bmin[1]), float32(bmin[2])},
				"max":           []float32{float32(bmax[0]), float32(bmax[1]), float32(bmax[2])},
			},
			{
				"bufferView":    1,
				"componentType": compTypeU32,
				"count":         len(p.Faces),
				"type":          "SCALAR",
			},
		},
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	for len(jsonBytes)%4 != 0 {
		jsonBytes = append(jsonBytes, ' ')
	}

	total := 12 + 8 + len(jsonBytes) + 8 + bin.Len()
	out := &bytes.Buffer{}
	writeU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		out.Write(b[:])
	}
	writeU32(glbMagic)
	writeU32(glbVersion)
	writeU32(uint32(total))
	writeU32(uint32(len(jsonBytes)))
	writeU32(chunkJSON)
	out.Write(jsonBytes)
	writeU32(uint32(bin.Len()))
	writeU32(chunkBIN)
	out.Write(bin.Bytes())
	return out.Bytes(), nil
}
