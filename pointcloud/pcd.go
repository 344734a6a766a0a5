package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// PCDType is the data encoding of a pcd file.
type PCDType int

const (
	// PCDAscii stores one point per text line.
	PCDAscii PCDType = iota
	// PCDBinary stores packed little endian records.
	PCDBinary
	// PCDCompressed is recognized in headers but not supported.
	PCDCompressed
)

const pcdCommentChar = "#"

// pcdInitialPoints is the most points allocated before any record has been read.
const pcdInitialPoints = 1 << 16

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

// pcdField is one scalar column of a pcd record. Only 4 byte scalars are supported.
type pcdField struct {
	name string
	typ  string
}

type pcdHeader struct {
	fields []pcdField
	width  int
	height int
	points int
	data   PCDType
}

func (h *pcdHeader) index(name string) int {
	for i, f := range h.fields {
		if f.name == name {
			return i
		}
	}
	return -1
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %q", name, line)
	}
	checkCount := func() error {
		if len(tokens) != len(header.fields) {
			return errors.Errorf("unexpected number of fields in %s line", name)
		}
		return nil
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if len(tokens) < 3 || tokens[0] != "x" || tokens[1] != "y" || tokens[2] != "z" {
			return errors.Errorf("unsupported pcd fields %q", value)
		}
		header.fields = make([]pcdField, len(tokens))
		for i, t := range tokens {
			header.fields[i].name = t
		}
	case "SIZE":
		if err := checkCount(); err != nil {
			return err
		}
		for _, t := range tokens {
			if t != "4" {
				return errors.Errorf("unsupported SIZE field %s", t)
			}
		}
	case "TYPE":
		if err := checkCount(); err != nil {
			return err
		}
		for i, t := range tokens {
			switch t {
			case "F", "I", "U":
				header.fields[i].typ = t
			default:
				return errors.Errorf("invalid TYPE field %s", t)
			}
		}
	case "COUNT":
		if err := checkCount(); err != nil {
			return err
		}
		for _, t := range tokens {
			if t != "1" {
				return errors.Errorf("unsupported COUNT field %s", t)
			}
		}
	case "WIDTH", "HEIGHT", "POINTS":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Errorf("invalid %s field %s", name, value)
		}
		switch name {
		case "WIDTH":
			header.width = n
		case "HEIGHT":
			header.height = n
		default:
			if n != header.width*header.height {
				return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", n, header.width*header.height)
			}
			header.points = n
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		for _, t := range tokens {
			if _, err := strconv.ParseFloat(t, 64); err != nil {
				return errors.Wrapf(err, "invalid VIEWPOINT field %s", t)
			}
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported DATA field %s", value)
		}
	}
	return nil
}

// ReadPCD reads a cloud from pcd data. Positions are taken from the x y z fields; rgb, intensity
// and normal_x normal_y normal_z fields fill the matching properties. Other fields are ignored.
func ReadPCD(inRaw io.Reader) (*PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	for i, f := range header.fields {
		if f.typ == "" {
			return nil, errors.Errorf("missing TYPE for field %s", header.fields[i].name)
		}
	}

	pc := New()
	sink := newPCDSink(pc, &header)
	record := make([]float64, len(header.fields))
	for i := 0; i < header.points; i++ {
		// the header count is not trusted for allocation, the cloud grows as records arrive
		if i == pc.Size() {
			pc.Resize(min(header.points, max(2*i, pcdInitialPoints)))
			sink.refresh(pc)
		}
		var err error
		switch header.data {
		case PCDAscii:
			err = readPCDAsciiRecord(in, &header, record)
		case PCDBinary:
			err = readPCDBinaryRecord(in, &header, record)
		default:
			return nil, errors.New("compressed pcd not yet supported")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		sink.set(i, record)
	}
	pc.MarkModified()
	return pc, nil
}

func readPCDAsciiRecord(in *bufio.Reader, header *pcdHeader, record []float64) error {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return err
	}
	tokens := strings.Fields(line)
	if len(tokens) != len(header.fields) {
		return errors.Errorf("unexpected number of fields %d", len(tokens))
	}
	for j, t := range tokens {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid field %s", t)
		}
		record[j] = v
	}
	return nil
}

func readPCDBinaryRecord(in *bufio.Reader, header *pcdHeader, record []float64) error {
	var buf [4]byte
	for j, f := range header.fields {
		if _, err := io.ReadFull(in, buf[:]); err != nil {
			return err
		}
		bits := binary.LittleEndian.Uint32(buf[:])
		switch f.typ {
		case "F":
			if f.name == "rgb" {
				// packed color stored in float bits
				record[j] = float64(bits)
			} else {
				record[j] = float64(math.Float32frombits(bits))
			}
		case "I":
			record[j] = float64(int32(bits))
		default:
			record[j] = float64(bits)
		}
	}
	return nil
}

// pcdSink routes pcd record fields into cloud properties.
type pcdSink struct {
	positions   []r3.Vector
	colors      []colorful.Color
	normals     []r3.Vector
	intensities []float32

	rgb, intensity, nx, ny, nz int
}

func newPCDSink(pc *PointCloud, header *pcdHeader) *pcdSink {
	s := &pcdSink{
		rgb:       header.index("rgb"),
		intensity: header.index("intensity"),
		nx:        header.index("normal_x"),
		ny:        header.index("normal_y"),
		nz:        header.index("normal_z"),
	}
	if s.rgb >= 0 {
		pc.AddColors()
	}
	if s.intensity >= 0 {
		pc.AddIntensities()
	}
	if s.nx >= 0 && s.ny >= 0 && s.nz >= 0 {
		pc.AddNormals()
	}
	s.refresh(pc)
	return s
}

// refresh picks up the columns of pc after a resize.
func (s *pcdSink) refresh(pc *PointCloud) {
	s.positions = pc.Positions()
	s.colors = pc.Colors()
	s.normals = pc.Normals()
	s.intensities = pc.Intensities()
}

func (s *pcdSink) set(i int, record []float64) {
	s.positions[i] = r3.Vector{X: record[0], Y: record[1], Z: record[2]}
	if s.colors != nil {
		s.colors[i] = pcdIntToColor(uint32(record[s.rgb]))
	}
	if s.intensities != nil {
		s.intensities[i] = float32(record[s.intensity])
	}
	if s.normals != nil {
		s.normals[i] = r3.Vector{X: record[s.nx], Y: record[s.ny], Z: record[s.nz]}
	}
}

func colorToPCDInt(c colorful.Color) uint32 {
	r, g, b := c.Clamped().RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func pcdIntToColor(c uint32) colorful.Color {
	return colorful.Color{
		R: float64(0xFF&(c>>16)) / 255,
		G: float64(0xFF&(c>>8)) / 255,
		B: float64(0xFF&c) / 255,
	}
}

// WritePCD writes the cloud as pcd data. Colors, normals and intensities are written when present.
func WritePCD(pc *PointCloud, out io.Writer, outputType PCDType) error {
	if outputType == PCDCompressed {
		return errors.New("compressed PCD not yet implemented")
	}
	names := []string{"x", "y", "z"}
	types := []string{"F", "F", "F"}
	colors, normals, intensities := pc.Colors(), pc.Normals(), pc.Intensities()
	if colors != nil {
		names, types = append(names, "rgb"), append(types, "U")
	}
	if normals != nil {
		names, types = append(names, "normal_x", "normal_y", "normal_z"), append(types, "F", "F", "F")
	}
	if intensities != nil {
		names, types = append(names, "intensity"), append(types, "F")
	}
	repeat := func(s string) string {
		return strings.TrimSpace(strings.Repeat(s+" ", len(names)))
	}
	data := "ascii"
	if outputType == PCDBinary {
		data = "binary"
	}

	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS %s\n"+
		"SIZE %s\n"+
		"TYPE %s\n"+
		"COUNT %s\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		strings.Join(names, " "), repeat("4"), strings.Join(types, " "), repeat("1"),
		pc.Size(), pc.Size(), data); err != nil {
		return err
	}

	values := make([]float64, 0, len(names))
	buf := make([]byte, 4*len(names))
	for i, p := range pc.Positions() {
		values = append(values[:0], p.X, p.Y, p.Z)
		if colors != nil {
			values = append(values, float64(colorToPCDInt(colors[i])))
		}
		if normals != nil {
			values = append(values, normals[i].X, normals[i].Y, normals[i].Z)
		}
		if intensities != nil {
			values = append(values, float64(intensities[i]))
		}
		var err error
		switch outputType {
		case PCDBinary:
			for j, v := range values {
				bits := math.Float32bits(float32(v))
				if types[j] == "U" {
					bits = uint32(v)
				}
				binary.LittleEndian.PutUint32(buf[4*j:], bits)
			}
			_, err = w.Write(buf)
		default:
			fields := make([]string, len(values))
			for j, v := range values {
				if types[j] == "U" {
					fields[j] = strconv.FormatUint(uint64(v), 10)
				} else {
					fields[j] = strconv.FormatFloat(v, 'f', -1, 32)
				}
			}
			_, err = fmt.Fprintln(w, strings.Join(fields, " "))
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}
