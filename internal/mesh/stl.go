package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReadSTL loads a binary or ASCII STL file. The variant is decided by the
// byte-size check on the declared triangle count, not by the "solid" prefix:
// plenty of binary exporters write "solid" into the comment header.
func ReadSTL(path string) (*PolyData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) >= 84 {
		count := binary.LittleEndian.Uint32(raw[80:84])
		if int64(len(raw)) == 84+int64(count)*50 {
			return parseBinarySTL(raw, count)
		}
	}
	return parseASCIISTL(path, raw)
}

func parseBinarySTL(raw []byte, count uint32) (*PolyData, error) {
	p := &PolyData{
		Verts: make([]float64, 0, int(count)*9),
		Faces: make([]uint32, 0, int(count)*3),
	}
	off := 84
	for t := uint32(0); t < count; t++ {
		off += 12 // skip stored normal, recomputed on write
		for v := 0; v < 3; v++ {
			x := math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			y := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4:]))
			z := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+8:]))
			p.Faces = append(p.Faces, uint32(p.VertexCount()))
			p.Verts = append(p.Verts, float64(x), float64(y), float64(z))
			off += 12
		}
		off += 2 // attribute byte count
	}
	return p.Clean(), nil
}

func parseASCIISTL(path string, raw []byte) (*PolyData, error) {
	p := &PolyData{}
	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) != 4 || fields[0] != "vertex" {
			continue
		}
		var xyz [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad vertex coordinate %q", path, lineNo, fields[i+1])
			}
			xyz[i] = v
		}
		p.Faces = append(p.Faces, uint32(p.VertexCount()))
		p.Verts = append(p.Verts, xyz[0], xyz[1], xyz[2])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Faces)%3 != 0 {
		return nil, fmt.Errorf("%s: truncated facet, %d vertices", path, p.VertexCount())
	}
	if p.FaceCount() == 0 {
		return nil, fmt.Errorf("%s: no triangles found", path)
	}
	return p.Clean(), nil
}

// WriteSTL writes p as binary STL with recomputed facet normals.
func WriteSTL(path string, p *PolyData) error {
	if err := p.validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var header [80]byte
	copy(header[:], "binary stl")
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(p.FaceCount())); err != nil {
		return err
	}
	buf := make([]byte, 50)
	for t := 0; t < p.FaceCount(); t++ {
		nx, ny, nz := p.faceNormal(t)
		l := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if l > 0 {
			nx, ny, nz = nx/l, ny/l, nz/l
		}
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(nx)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(ny)))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(nz)))
		off := 12
		for v := 0; v < 3; v++ {
			x, y, z := p.Vertex(int(p.Faces[t*3+v]))
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(x)))
			binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(float32(y)))
			binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(float32(z)))
			off += 12
		}
		buf[48], buf[49] = 0, 0
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
